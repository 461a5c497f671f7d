package videoFs

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Publish uploads the local file at localPath to bucket/key. Used by
// the CLI's encode command when given s3://bucket/key addressing for
// -o.
func Publish(localPath, bucket, key string) error {
	log.Printf("videoFs.Publish called | local=%s | bucket=%s | key=%s", localPath, bucket, key)

	client, err := newS3Client()
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("videoFs: open %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("videoFs: PutObject %s/%s: %w", bucket, key, err)
	}

	log.Printf("videoFs.Publish completed | bucket=%s | key=%s", bucket, key)
	return nil
}
