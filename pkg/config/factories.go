package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/session"
	"github.com/marmos91/validay/pkg/session/archive"
	sessionBadger "github.com/marmos91/validay/pkg/session/badger"
	sessionMemory "github.com/marmos91/validay/pkg/session/memory"
	"github.com/mitchellh/mapstructure"
)

// s3ArchiveOptions is the sessions.archive.s3 section.
type s3ArchiveOptions struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CreateSessionStore creates a session store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/session/memory (lost on restart)
//   - "badger": Uses pkg/session/badger (persistent, embedded)
func CreateSessionStore(ctx context.Context, cfg *SessionStoreConfig) (session.Store, error) {
	switch cfg.Type {
	case "memory":
		return sessionMemory.New(), nil
	case "badger":
		return createBadgerSessionStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown session store type: %q", cfg.Type)
	}
}

// createBadgerSessionStore creates a BadgerDB-backed session store.
func createBadgerSessionStore(ctx context.Context, options map[string]any) (session.Store, error) {
	var storeCfg sessionBadger.Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger session store config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger session store: db_path is required")
	}

	store, err := sessionBadger.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger session store: %w", err)
	}

	logger.Info("Badger session store initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

// CreateArchiver creates a session archiver based on configuration.
//
// Supported types:
//   - "s3": Uses pkg/session/archive (Amazon S3 or compatible storage)
func CreateArchiver(ctx context.Context, cfg *ArchiveConfig) (session.Archiver, error) {
	switch cfg.Type {
	case "s3":
		return createS3Archiver(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type: %q", cfg.Type)
	}
}

// createS3Archiver creates an S3 session archiver.
func createS3Archiver(ctx context.Context, options map[string]any) (session.Archiver, error) {
	var archiveCfg s3ArchiveOptions
	if err := mapstructure.Decode(options, &archiveCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 archive config: %w", err)
	}

	if archiveCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 archive: bucket is required")
	}
	if archiveCfg.Region == "" {
		return nil, fmt.Errorf("S3 archive: region is required")
	}

	client, err := newS3Client(ctx, archiveCfg)
	if err != nil {
		return nil, err
	}

	archiver, err := archive.NewS3Archiver(archive.S3ArchiverConfig{
		Client:    client,
		Bucket:    archiveCfg.Bucket,
		KeyPrefix: archiveCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 archiver: %w", err)
	}

	logger.Info("S3 session archive initialized: bucket=%s, region=%s, prefix=%s",
		archiveCfg.Bucket, archiveCfg.Region, archiveCfg.KeyPrefix)

	return archiver, nil
}

// newS3Client builds an S3 client from the archive options.
func newS3Client(ctx context.Context, opts s3ArchiveOptions) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	// Set credentials if provided, otherwise use default credential chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
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

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
