// Package archive exports closed session records to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/session"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
// *s3.Client satisfies it.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads batches of records as JSON-lines objects.
//
// Each call to Archive writes one object named
// "<prefix>sessions-<unix-nanos>.jsonl" holding one record per line.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// S3ArchiverConfig contains configuration for the S3 archiver.
type S3ArchiverConfig struct {
	// Client is the configured S3 client
	Client PutObjectAPI

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "validay/sessions/"
	KeyPrefix string
}

func NewS3Archiver(cfg S3ArchiverConfig) (*S3Archiver, error) {
	if cfg.Client == nil {
		return nil, errors.New("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	return &S3Archiver{
		client: cfg.Client,
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
		now:    time.Now,
	}, nil
}

// Archive uploads records. An empty batch is a no-op.
func (a *S3Archiver) Archive(ctx context.Context, records []session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	body, err := encodeLines(records)
	if err != nil {
		return err
	}

	key := a.objectKey()
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %d session(s) to s3://%s/%s: %w", len(records), a.bucket, key, err)
	}

	logger.Debug("Archived %d session(s) to s3://%s/%s", len(records), a.bucket, key)
	return nil
}

func (a *S3Archiver) objectKey() string {
	return fmt.Sprintf("%ssessions-%d.jsonl", a.prefix, a.now().UnixNano())
}

func encodeLines(records []session.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encode session %s: %w", records[i].ID, err)
		}
	}
	return buf.Bytes(), nil
}
