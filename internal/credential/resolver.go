package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tianchangNorth/githeart/internal/remote"
)

// ErrCredentialsRequired signals that an HTTPS operation cannot proceed
// until the user supplies a token for the domain. It is a pause-and-prompt
// condition, not a failure: the caller is expected to obtain a token and
// retry the same action.
var ErrCredentialsRequired = errors.New("authentication required: no usable token for domain")

// Resolver produces a concrete Auth descriptor for a detected protocol and
// remote domain. It consults the token store for HTTPS and discovers SSH
// keys for SSH. Session-scoped state (explicit per-repository key
// selections, domains whose stored token failed authentication) lives here
// and is not persisted.
type Resolver struct {
	store  Store
	sshDir string

	mu           sync.Mutex
	selectedKeys map[string]string // repoPath -> key path, session only
	stale        map[string]bool   // domain -> token failed auth since last store
}

// NewResolver creates a resolver over the given store. sshDir may be empty,
// in which case the user's default SSH directory is used.
func NewResolver(store Store, sshDir string) *Resolver {
	if sshDir == "" {
		if dir, err := DefaultSSHDir(); err == nil {
			sshDir = dir
		}
	}
	return &Resolver{
		store:        store,
		sshDir:       sshDir,
		selectedKeys: make(map[string]string),
		stale:        make(map[string]bool),
	}
}

// Resolve returns the descriptor to present for one operation.
//
// HTTPS requires a stored, validated-usable token; a missing or stale one
// yields ErrCredentialsRequired. SSH yields the repository's explicitly
// selected key if any, else the first discovered default key, else None.
// Unknown always yields None: public/anonymous access is assumed.
func (r *Resolver) Resolve(ctx context.Context, protocol remote.Protocol, domain, repoPath string) (Auth, error) {
	switch protocol {
	case remote.HTTPS:
		domain = strings.ToLower(domain)
		r.mu.Lock()
		stale := r.stale[domain]
		r.mu.Unlock()
		if stale {
			return Auth{}, ErrCredentialsRequired
		}

		cfg, err := r.store.Retrieve(ctx, domain)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Auth{}, ErrCredentialsRequired
			}
			return Auth{}, fmt.Errorf("failed to read token store: %w", err)
		}
		return TokenAuth(cfg.Token, cfg.Username), nil

	case remote.SSH:
		r.mu.Lock()
		selected := r.selectedKeys[repoPath]
		r.mu.Unlock()
		if selected != "" {
			return SSHKeyAuth(selected, ""), nil
		}
		if keys := DiscoverSSHKeys(r.sshDir); len(keys) > 0 {
			return SSHKeyAuth(keys[0], ""), nil
		}
		return NoAuth(), nil

	default:
		return NoAuth(), nil
	}
}

// SelectSSHKey pins a non-default key for a repository. The selection is
// honored for subsequent operations on the same repository within the
// session instead of being re-resolved to the default.
func (r *Resolver) SelectSSHKey(repoPath, keyPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if keyPath == "" {
		delete(r.selectedKeys, repoPath)
		return
	}
	r.selectedKeys[repoPath] = keyPath
}

// StoreToken saves a fresh user-supplied token and clears any stale flag
// for its domain, restoring the domain to configured.
func (r *Resolver) StoreToken(ctx context.Context, cfg TokenConfig) error {
	if err := r.store.Store(ctx, cfg); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	r.ClearStale(cfg.Domain)
	return nil
}

// MarkUsed records a successful consuming use of the domain's token: the
// stale flag is cleared and LastUsed is updated. The store write is
// best-effort; its error is returned for logging but the operation that
// consumed the token has already succeeded.
func (r *Resolver) MarkUsed(ctx context.Context, domain string) error {
	domain = strings.ToLower(domain)
	r.mu.Lock()
	delete(r.stale, domain)
	r.mu.Unlock()
	return r.store.Touch(ctx, domain, time.Now())
}

// MarkStale records an authentication failure for the domain. The record
// stays in the store, but Resolve reports ErrCredentialsRequired until a
// new token is stored: the flag reflects validated usability, not mere
// presence.
func (r *Resolver) MarkStale(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[strings.ToLower(domain)] = true
}

// ClearStale removes the stale flag, typically after the user stored a
// fresh token for the domain.
func (r *Resolver) ClearStale(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stale, strings.ToLower(domain))
}

// Configured reports whether the domain has a usable token: present in the
// store and not flagged stale by an authentication failure.
func (r *Resolver) Configured(ctx context.Context, domain string) bool {
	domain = strings.ToLower(domain)
	r.mu.Lock()
	stale := r.stale[domain]
	r.mu.Unlock()
	if stale {
		return false
	}
	_, err := r.store.Retrieve(ctx, domain)
	return err == nil
}
