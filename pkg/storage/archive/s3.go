package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store archives canonical content into an S3 (or S3-compatible) bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3StoreConfig contains configuration for creating an S3 archive store.
type S3StoreConfig struct {
	// Client is a configured S3 client (required)
	Client *s3.Client

	// Bucket is the bucket archived objects are written to (required)
	Bucket string

	// KeyPrefix is prepended to every object key (optional)
	KeyPrefix string
}

func NewS3Store(config S3StoreConfig) (*S3Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("s3 archive store: client is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 archive store: bucket is required")
	}

	return &S3Store{
		client:    config.Client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.keyPrefix, key)
}

// Put uploads one archived object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("archive put %q: %w", key, err)
	}
	return nil
}

// Delete removes one archived object. Deleting an absent key is not an error
// (S3 DeleteObject is idempotent).
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("archive delete %q: %w", key, err)
	}
	return nil
}
