//go:build integration

package s3_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/loftlabs/loftfs/pkg/storage/archive"
)

// setupTestS3 creates an S3 client and test bucket against Localstack (or
// another S3-compatible endpoint), returning a cleanup that drops the bucket.
func setupTestS3(t *testing.T, bucketName string) (*s3.Client, func()) {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test",
			"test",
			"",
		)),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			t.Skipf("Skipping: cannot reach S3 endpoint %s: %v", endpoint, err)
		}
	}

	cleanup := func() {
		list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		if err == nil {
			for _, obj := range list.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(bucketName),
					Key:    obj.Key,
				})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	}

	return client, cleanup
}

func TestS3ArchivePutAndDelete(t *testing.T) {
	bucket := fmt.Sprintf("loftfs-test-%d", time.Now().UnixNano())
	client, cleanup := setupTestS3(t, bucket)
	defer cleanup()

	store, err := archive.NewS3Store(archive.S3StoreConfig{
		Client:    client,
		Bucket:    bucket,
		KeyPrefix: "archive",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}

	ctx := context.Background()
	payload := []byte("archived canonical content")

	if err := store.Put(ctx, "alice/docs/report.txt", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The object lands under the key prefix.
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String("archive/alice/docs/report.txt"),
	})
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	data, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Fatalf("archived object = %q, want %q", data, payload)
	}

	if err := store.Delete(ctx, "alice/docs/report.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String("archive/alice/docs/report.txt"),
	}); err == nil {
		t.Error("object should be gone after Delete")
	}

	// Deleting an absent key is idempotent.
	if err := store.Delete(ctx, "alice/never-existed.txt"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}
