package videoFs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// CacheDir is the local directory downloaded/published bytes are
// staged under, matching the teacher's own assets/videos convention.
const CacheDir = "assets/videos"

func newS3Client() (*s3.S3, error) {
	region := os.Getenv("AWS_DEFAULT_REGION")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if region == "" || accessKey == "" || secretKey == "" {
		return nil, errors.New("missing one or more required environment variables: AWS_DEFAULT_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	})
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// Fetch downloads bucket/key to the local cache directory and returns
// the local path, CacheDir joined with the key's last path element
// (relative to the working directory). Used by the CLI when given
// s3://bucket/key addressing for a decode input .vai container or an
// encode source clip.
func Fetch(bucket, key string) (string, error) {
	log.Printf("videoFs.Fetch called | bucket=%s | key=%s", bucket, key)

	client, err := newS3Client()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(CacheDir, os.ModePerm); err != nil {
		return "", err
	}

	result, err := client.GetObject(&s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", fmt.Errorf("videoFs: GetObject %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	localPath := filepath.Join(CacheDir, filepath.Base(key))
	outFile, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, result.Body); err != nil {
		return "", fmt.Errorf("videoFs: writing %s: %w", localPath, err)
	}

	log.Printf("videoFs.Fetch completed | local=%s", localPath)
	return localPath, nil
}
