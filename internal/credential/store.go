// Package credential manages the authentication material presented to Git
// remotes: per-domain personal access tokens and SSH private keys.
//
// Storage Strategy
//
// Tokens are stored as one TokenConfig record per domain (lowercased host,
// e.g. "github.com"). Two Store implementations are provided:
//
// 1. FileStore (Primary Storage):
//   - JSON file on disk, one record per domain
//   - Survives application restarts; records are deleted only on explicit
//     user request
//   - Writes are serialized so concurrent operations sharing a domain
//     cannot lose updates
//
// 2. MemoryStore (Testing/Ephemeral Use):
//   - No persistence between program restarts
//   - Useful for tests and short-lived operations
//
// SSH keys are never stored here; only discovered from the user's SSH
// directory or explicitly selected per repository for the session.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors that may be returned by credential store operations
var (
	ErrNotFound    = errors.New("token configuration not found")
	ErrInvalid     = errors.New("token configuration is invalid")
	ErrStoreClosed = errors.New("credential store is closed")
)

// TokenConfig is a per-domain HTTPS token record. Domain is the unique key;
// at most one live record exists per domain.
type TokenConfig struct {
	// Domain is the lowercased remote host this token applies to.
	Domain string `json:"domain"`

	// Token is the personal access token value.
	Token string `json:"token"`

	// Username optionally names the account the token belongs to. Some
	// servers require it as the basic-auth username; "git" is used when
	// empty.
	Username string `json:"username,omitempty"`

	// CreatedAt indicates when the record was created by the user.
	CreatedAt time.Time `json:"created_at"`

	// LastUsed is updated on every successful consuming operation.
	// Nil means the token has never been used.
	LastUsed *time.Time `json:"last_used,omitempty"`
}

// NewTokenConfig creates a validated record. The domain is lowercased so
// lookups are case-insensitive.
func NewTokenConfig(domain, token, username string) (TokenConfig, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return TokenConfig{}, errors.New("domain cannot be empty")
	}
	if token == "" {
		return TokenConfig{}, errors.New("token value cannot be empty")
	}
	return TokenConfig{
		Domain:    domain,
		Token:     token,
		Username:  username,
		CreatedAt: time.Now(),
	}, nil
}

// IsValid performs basic validation of a record.
func IsValid(cfg TokenConfig) bool {
	return cfg.Domain != "" && cfg.Token != ""
}

// Store defines the interface for token persistence implementations.
// Implementations must serialize writes so that concurrent operations
// against the same domain cannot lose updates.
type Store interface {
	// Store saves a record keyed by its domain.
	// An existing record for the same domain is overwritten.
	Store(ctx context.Context, cfg TokenConfig) error

	// Retrieve gets the record for a domain.
	// Returns ErrNotFound if no record exists.
	Retrieve(ctx context.Context, domain string) (TokenConfig, error)

	// Delete removes the record for a domain.
	// Returns nil if the record was deleted or did not exist.
	Delete(ctx context.Context, domain string) error

	// List returns all stored records.
	List(ctx context.Context) ([]TokenConfig, error)

	// Touch updates the LastUsed timestamp for a domain.
	// Returns ErrNotFound if no record exists.
	Touch(ctx context.Context, domain string, when time.Time) error

	// Close performs any necessary cleanup.
	Close(ctx context.Context) error
}
