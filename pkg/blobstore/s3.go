package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 implements Client for Amazon S3.
type S3 struct {
	client *s3.Client
}

// NewS3 creates an S3-backed blob store using the default credential
// chain and region resolution.
func NewS3(ctx context.Context) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg)}, nil
}

// Upload writes the object with a single PutObject call.
func (s *S3) Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload object %s/%s: %w", bucket, key, err)
	}

	return nil
}

// URI returns the s3:// location of an object.
func (s *S3) URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// Close implements Client. The S3 client holds no closable resources.
func (s *S3) Close() error {
	return nil
}
