package main

import (
	"fmt"
	"strings"

	"github.com/luminate-inc/vai/pkg/videoFs"
)

// resolveInput returns a local path ready to open, fetching from S3
// first if addr uses s3://bucket/key addressing.
func resolveInput(addr string) (string, error) {
	bucket, key, ok := parseS3(addr)
	if !ok {
		return addr, nil
	}
	return videoFs.Fetch(bucket, key)
}

// publishOutput uploads localPath to addr's s3://bucket/key location.
// It is a no-op when addr is already a plain local path.
func publishOutput(localPath, addr string) error {
	bucket, key, ok := parseS3(addr)
	if !ok {
		return nil
	}
	return videoFs.Publish(localPath, bucket, key)
}

func parseS3(addr string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(addr, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(addr, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// localOutputPath returns the path encode should write its container
// to on disk, even when addr is an s3:// destination: encode always
// writes locally first, then publishOutput uploads it.
func localOutputPath(addr string) (string, error) {
	bucket, key, ok := parseS3(addr)
	if !ok {
		return addr, nil
	}
	return fmt.Sprintf("%s/%s-%s", videoFs.CacheDir, bucket, lastSegment(key)), nil
}

func lastSegment(key string) string {
	parts := strings.Split(key, "/")
	return parts[len(parts)-1]
}
