package config

import (
	"context"
	"strings"
	"testing"

	"github.com/marmos91/validay/pkg/session/archive"
	sessionBadger "github.com/marmos91/validay/pkg/session/badger"
	sessionMemory "github.com/marmos91/validay/pkg/session/memory"
)

func TestCreateSessionStore_Memory(t *testing.T) {
	store, err := CreateSessionStore(context.Background(), &SessionStoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory session store: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*sessionMemory.Store); !ok {
		t.Errorf("Expected *memory.Store, got %T", store)
	}
}

func TestCreateSessionStore_Badger(t *testing.T) {
	cfg := &SessionStoreConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": t.TempDir()},
	}

	store, err := CreateSessionStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create badger session store: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*sessionBadger.Store); !ok {
		t.Errorf("Expected *badger.Store, got %T", store)
	}
}

func TestCreateSessionStore_BadgerMissingPath(t *testing.T) {
	cfg := &SessionStoreConfig{Type: "badger", Badger: map[string]any{}}

	_, err := CreateSessionStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing db_path")
	}
	if !strings.Contains(err.Error(), "db_path is required") {
		t.Errorf("Expected 'db_path is required' error, got: %v", err)
	}
}

func TestCreateSessionStore_UnknownType(t *testing.T) {
	_, err := CreateSessionStore(context.Background(), &SessionStoreConfig{Type: "postgres"})
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown session store type") {
		t.Errorf("Expected 'unknown session store type' error, got: %v", err)
	}
}

func TestCreateArchiver_S3(t *testing.T) {
	cfg := &ArchiveConfig{
		Type: "s3",
		S3: map[string]any{
			"bucket":            "sessions",
			"region":            "us-east-1",
			"endpoint":          "http://localhost:9000",
			"access_key_id":     "minio",
			"secret_access_key": "minio123",
		},
	}

	archiver, err := CreateArchiver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create S3 archiver: %v", err)
	}
	if _, ok := archiver.(*archive.S3Archiver); !ok {
		t.Errorf("Expected *archive.S3Archiver, got %T", archiver)
	}
}

func TestCreateArchiver_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		want    string
	}{
		{"bucket", map[string]any{"region": "us-east-1"}, "bucket is required"},
		{"region", map[string]any{"bucket": "b"}, "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateArchiver(context.Background(), &ArchiveConfig{Type: "s3", S3: tt.options})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Expected %q error, got: %v", tt.want, err)
			}
		})
	}
}

func TestCreateArchiver_UnknownType(t *testing.T) {
	_, err := CreateArchiver(context.Background(), &ArchiveConfig{Type: "gcs"})
	if err == nil || !strings.Contains(err.Error(), "unknown archive type") {
		t.Fatalf("Expected unknown archive type error, got: %v", err)
	}
}
