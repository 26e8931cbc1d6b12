//go:build integration

package s3_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/validay/pkg/config"
	"github.com/marmos91/validay/pkg/session"
	"github.com/marmos91/validay/pkg/session/archive"
	"github.com/marmos91/validay/pkg/session/sessiontest"
)

func localstackEndpoint() string {
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "http://localhost:4566"
}

// setupTestS3 creates an S3 client and test bucket for integration tests.
//
// It connects to Localstack (or other S3-compatible endpoint) and creates a
// test bucket that is emptied and removed when the test ends.
func setupTestS3(t *testing.T, bucketName string) *s3.Client {
	t.Helper()
	ctx := context.Background()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", // AccessKeyID
			"test", // SecretAccessKey
			"",     // SessionToken
		)),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	// Path-style URLs are required for Localstack
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(localstackEndpoint())
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	t.Cleanup(func() {
		listResp, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		if listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(bucketName),
					Key:    obj.Key,
				})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	})

	return client
}

func readArchived(t *testing.T, client *s3.Client, bucket, prefix string) []session.Record {
	t.Helper()
	ctx := context.Background()

	list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		t.Fatalf("Failed to list objects: %v", err)
	}

	var records []session.Record
	for _, obj := range list.Contents {
		resp, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
		if err != nil {
			t.Fatalf("Failed to get %s: %v", aws.ToString(obj.Key), err)
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var rec session.Record
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				t.Fatalf("Invalid line in %s: %v", aws.ToString(obj.Key), err)
			}
			records = append(records, rec)
		}
		_ = resp.Body.Close()
	}
	return records
}

// TestS3Archiver_Integration uploads a batch to a real S3-compatible
// service (Localstack) and reads it back.
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Archiver_Integration(t *testing.T) {
	ctx := context.Background()
	bucketName := "validay-archive-test"
	client := setupTestS3(t, bucketName)

	archiver, err := archive.NewS3Archiver(archive.S3ArchiverConfig{
		Client:    client,
		Bucket:    bucketName,
		KeyPrefix: "direct/",
	})
	if err != nil {
		t.Fatalf("Failed to create archiver: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	batch := []session.Record{sessiontest.NewRecord(now), sessiontest.NewRecord(now.Add(time.Second))}
	if err := archiver.Archive(ctx, batch); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	got := readArchived(t, client, bucketName, "direct/")
	if len(got) != len(batch) {
		t.Fatalf("Expected %d archived records, got %d", len(batch), len(got))
	}
	for i := range batch {
		if got[i].ID != batch[i].ID {
			t.Errorf("Record %d: expected id %s, got %s", i, batch[i].ID, got[i].ID)
		}
		if !got[i].DisconnectedAt.Equal(batch[i].DisconnectedAt) {
			t.Errorf("Record %d: disconnect time mismatch", i)
		}
	}
}

// TestCreateArchiver_Integration builds the archiver from configuration the
// way the server binary does.
func TestCreateArchiver_Integration(t *testing.T) {
	ctx := context.Background()
	bucketName := "validay-config-test"
	client := setupTestS3(t, bucketName)

	archiver, err := config.CreateArchiver(ctx, &config.ArchiveConfig{
		Enabled: true,
		Type:    "s3",
		S3: map[string]any{
			"region":            "us-east-1",
			"bucket":            bucketName,
			"key_prefix":        "configured/",
			"endpoint":          localstackEndpoint(),
			"access_key_id":     "test",
			"secret_access_key": "test",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create archiver from config: %v", err)
	}

	if err := archiver.Archive(ctx, []session.Record{sessiontest.NewRecord(time.Now())}); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if got := readArchived(t, client, bucketName, "configured/"); len(got) != 1 {
		t.Fatalf("Expected 1 archived record, got %d", len(got))
	}
}
