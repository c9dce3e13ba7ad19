package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	cfg, _ := NewTokenConfig("github.com", "ghp_abc123", "octocat")
	if err := store.Store(ctx, cfg); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	when := time.Now().Truncate(time.Second)
	if err := store.Touch(ctx, "github.com", when); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() reopen error = %v", err)
	}
	got, err := reopened.Retrieve(ctx, "github.com")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Token != "ghp_abc123" || got.Username != "octocat" {
		t.Errorf("Retrieve() = %+v, want stored values", got)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(when) {
		t.Errorf("LastUsed = %v, want %v", got.LastUsed, when)
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nope", "tokens.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %d records, want 0", len(list))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("NewFileStore() on corrupt file succeeded, want error")
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	cfg, _ := NewTokenConfig("github.com", "ghp_abc", "")
	if err := store.Store(ctx, cfg); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token store permissions = %o, want 0600", perm)
	}
}

func TestFileStore_ClosedStoreRejectsOperations(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	cfg, _ := NewTokenConfig("github.com", "ghp_abc", "")
	if err := store.Store(ctx, cfg); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Store() after close = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Retrieve(ctx, "github.com"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Retrieve() after close = %v, want ErrStoreClosed", err)
	}
}
