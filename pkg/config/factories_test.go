package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loftlabs/loftfs/pkg/storage/archive"
)

func TestCreateAuthStore_File(t *testing.T) {
	ctx := context.Background()
	cfg := &AuthConfig{
		Type: "file",
		File: map[string]any{
			"path": filepath.Join(t.TempDir(), "users.yaml"),
		},
	}

	store, err := CreateAuthStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create file auth store: %v", err)
	}
	defer store.Close()

	if store == nil {
		t.Fatal("Expected non-nil store")
	}
}

func TestCreateAuthStore_FileMissingPath(t *testing.T) {
	ctx := context.Background()
	cfg := &AuthConfig{
		Type: "file",
		File: map[string]any{},
	}

	_, err := CreateAuthStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateAuthStore_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &AuthConfig{
		Type: "badger",
		Badger: map[string]any{
			"db_path": t.TempDir(),
		},
	}

	store, err := CreateAuthStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger auth store: %v", err)
	}
	defer store.Close()
}

func TestCreateAuthStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	cfg := &AuthConfig{Type: "ldap"}

	_, err := CreateAuthStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown auth store type") {
		t.Errorf("Expected 'unknown auth store type' error, got: %v", err)
	}
}

func TestCreateArchiveStore_None(t *testing.T) {
	ctx := context.Background()
	store, err := CreateArchiveStore(ctx, &ArchiveConfig{Type: "none"})
	if err != nil {
		t.Fatalf("Failed to create nop archive store: %v", err)
	}
	if _, ok := store.(archive.NopStore); !ok {
		t.Errorf("Expected NopStore, got %T", store)
	}
}

func TestCreateArchiveStore_S3MissingBucket(t *testing.T) {
	ctx := context.Background()
	cfg := &ArchiveConfig{
		Type: "s3",
		S3: map[string]any{
			"region": "eu-west-1",
		},
	}

	_, err := CreateArchiveStore(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateArchiveStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	_, err := CreateArchiveStore(ctx, &ArchiveConfig{Type: "tape"})
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown archive store type") {
		t.Errorf("Expected 'unknown archive store type' error, got: %v", err)
	}
}
