package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/tianchangNorth/githeart/internal/remote"
)

func TestResolver_HTTPS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewResolver(store, t.TempDir())

	// No token stored yet: pending credentials, not a crash.
	if _, err := r.Resolve(ctx, remote.HTTPS, "github.com", "/repo"); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("Resolve() without token = %v, want ErrCredentialsRequired", err)
	}

	cfg, _ := NewTokenConfig("github.com", "ghp_abc123", "octocat")
	if err := store.Store(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	auth, err := r.Resolve(ctx, remote.HTTPS, "github.com", "/repo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if auth.Kind != AuthToken || auth.Token != "ghp_abc123" || auth.Username != "octocat" {
		t.Errorf("Resolve() = %+v, want token descriptor with stored values", auth)
	}

	// Deleting the record brings back the pending outcome.
	if err := store.Delete(ctx, "github.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(ctx, remote.HTTPS, "github.com", "/repo"); !errors.Is(err, ErrCredentialsRequired) {
		t.Errorf("Resolve() after delete = %v, want ErrCredentialsRequired", err)
	}
}

func TestResolver_StaleTokenRequiresReentry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewResolver(store, t.TempDir())

	cfg, _ := NewTokenConfig("github.com", "ghp_old", "")
	if err := store.Store(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	// An authentication failure downgrades the configured flag even though
	// the record still exists.
	r.MarkStale("github.com")
	if r.Configured(ctx, "github.com") {
		t.Error("Configured() = true after MarkStale, want false")
	}
	if _, err := r.Resolve(ctx, remote.HTTPS, "github.com", "/repo"); !errors.Is(err, ErrCredentialsRequired) {
		t.Errorf("Resolve() with stale token = %v, want ErrCredentialsRequired", err)
	}
	if _, err := store.Retrieve(ctx, "github.com"); err != nil {
		t.Errorf("record should survive MarkStale, got %v", err)
	}

	r.ClearStale("github.com")
	if auth, err := r.Resolve(ctx, remote.HTTPS, "github.com", "/repo"); err != nil || auth.Kind != AuthToken {
		t.Errorf("Resolve() after ClearStale = (%+v, %v), want token descriptor", auth, err)
	}
}

func TestResolver_MarkUsedUpdatesLastUsed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewResolver(store, t.TempDir())

	cfg, _ := NewTokenConfig("gitlab.com", "glpat-xyz", "")
	if err := store.Store(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkUsed(ctx, "gitlab.com"); err != nil {
		t.Fatalf("MarkUsed() error = %v", err)
	}
	got, err := store.Retrieve(ctx, "gitlab.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsed == nil {
		t.Error("LastUsed not updated by MarkUsed")
	}
}

func TestResolver_SSH(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rsa := writeKey(t, dir, "id_rsa")
	r := NewResolver(NewMemoryStore(), dir)

	auth, err := r.Resolve(ctx, remote.SSH, "github.com", "/repo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if auth.Kind != AuthSSHKey || auth.KeyPath != rsa {
		t.Errorf("Resolve() = %+v, want discovered default key %s", auth, rsa)
	}
}

func TestResolver_SSHSelectionPersistsForSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeKey(t, dir, "id_ed25519")
	custom := writeKey(t, dir, "work_key")
	r := NewResolver(NewMemoryStore(), dir)

	r.SelectSSHKey("/repo", custom)

	// The explicit selection is honored on repeated resolves rather than
	// silently re-resolving to the default.
	for i := 0; i < 2; i++ {
		auth, err := r.Resolve(ctx, remote.SSH, "github.com", "/repo")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if auth.KeyPath != custom {
			t.Errorf("Resolve() key = %s, want selected %s", auth.KeyPath, custom)
		}
	}

	// Other repositories still get the default.
	auth, err := r.Resolve(ctx, remote.SSH, "github.com", "/other")
	if err != nil {
		t.Fatal(err)
	}
	if auth.KeyPath == custom {
		t.Error("selection for one repository leaked to another")
	}
}

func TestResolver_SSHNoKeys(t *testing.T) {
	r := NewResolver(NewMemoryStore(), t.TempDir())
	auth, err := r.Resolve(context.Background(), remote.SSH, "github.com", "/repo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if auth.Kind != AuthNone {
		t.Errorf("Resolve() with no keys = %+v, want AuthNone", auth)
	}
}

func TestResolver_Unknown(t *testing.T) {
	r := NewResolver(NewMemoryStore(), t.TempDir())
	auth, err := r.Resolve(context.Background(), remote.Unknown, "", "/repo")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if auth.Kind != AuthNone {
		t.Errorf("Resolve() for unknown protocol = %+v, want AuthNone", auth)
	}
}
