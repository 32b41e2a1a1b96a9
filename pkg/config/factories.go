package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/loftlabs/loftfs/internal/logger"
	"github.com/loftlabs/loftfs/pkg/auth"
	authBadger "github.com/loftlabs/loftfs/pkg/auth/badger"
	authFile "github.com/loftlabs/loftfs/pkg/auth/file"
	"github.com/loftlabs/loftfs/pkg/storage/archive"
)

// CreateAuthStore creates a credential store based on configuration.
//
// The Type field selects the backend; the matching type-specific option map
// is decoded into the backend's own configuration struct.
//
// Supported types:
//   - "file": YAML key-value file, rewritten on every registration
//   - "badger": BadgerDB-persisted credentials
func CreateAuthStore(ctx context.Context, cfg *AuthConfig) (auth.Store, error) {
	switch cfg.Type {
	case "file":
		return createFileAuthStore(ctx, cfg.File)
	case "badger":
		return createBadgerAuthStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown auth store type: %q (supported: file, badger)", cfg.Type)
	}
}

func createFileAuthStore(ctx context.Context, options map[string]any) (auth.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type FileAuthStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FileAuthStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode file auth store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("file auth store: path is required")
	}

	store, err := authFile.NewFileStore(storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file auth store: %w", err)
	}
	return store, nil
}

func createBadgerAuthStore(ctx context.Context, options map[string]any) (auth.Store, error) {
	var storeCfg authBadger.BadgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger auth store config: %w", err)
	}

	store, err := authBadger.NewBadgerStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger auth store: %w", err)
	}
	return store, nil
}

// CreateArchiveStore creates the archive sink based on configuration.
//
// Supported types:
//   - "none": discard (archiving disabled)
//   - "s3": Amazon S3 or any S3-compatible endpoint (MinIO, Localstack)
func CreateArchiveStore(ctx context.Context, cfg *ArchiveConfig) (archive.Store, error) {
	switch cfg.Type {
	case "none":
		return archive.NopStore{}, nil
	case "s3":
		return createS3ArchiveStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive store type: %q (supported: none, s3)", cfg.Type)
	}
}

func createS3ArchiveStore(ctx context.Context, options map[string]any) (archive.Store, error) {
	type S3ArchiveStoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3ArchiveStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 archive store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 archive store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 archive store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint support for MinIO, Localstack, etc.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for S3-compatible endpoints
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := archive.NewS3Store(archive.S3StoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 archive store: %w", err)
	}

	logger.Info("S3 archive store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}
