// Package gitexec executes Git operations through one of two backends: an
// embedded go-git implementation and a system git subprocess. The
// Dispatcher selects a backend per operation based on the remote's
// protocol and the resolved credentials, and converts backend failures into
// structured SyncResult values instead of raising them.
package gitexec

import (
	"context"
	"errors"

	"github.com/tianchangNorth/githeart/internal/credential"
)

// Action identifies a mutating sync operation against an existing
// repository.
type Action int

const (
	ActionFetch Action = iota
	ActionPull
	ActionPush
)

func (a Action) String() string {
	switch a {
	case ActionPull:
		return "pull"
	case ActionPush:
		return "push"
	default:
		return "fetch"
	}
}

// PullStrategy selects how remote commits are integrated by a pull. The
// strategy is passed straight through to whichever backend executes the
// pull.
type PullStrategy string

const (
	PullMerge  PullStrategy = "merge"
	PullRebase PullStrategy = "rebase"
)

// PullOptions configures a pull.
type PullOptions struct {
	Strategy PullStrategy
}

// PushOptions configures a push. Force and Tags are independent and are
// combined into a single push invocation.
type PushOptions struct {
	Force bool
	Tags  bool
}

// TransferProgress carries the cumulative network counters of an in-flight
// clone. ReceivedBytes is cumulative so callers can compute transfer rates
// between successive samples.
type TransferProgress struct {
	ReceivedBytes   int64
	ReceivedObjects int
	TotalObjects    int
	IndexedObjects  int
}

// CloneOptions configures a clone into a fresh directory.
type CloneOptions struct {
	URL  string
	Path string
	Auth credential.Auth

	// OnTransfer, when non-nil, receives network progress samples. It is
	// invoked from the backend's goroutine and must not block.
	OnTransfer func(TransferProgress)
}

// SyncResult is the structured outcome of a fetch, pull, or push. It is
// produced fresh by every operation; callers replace any cached counters
// wholesale rather than merging results.
type SyncResult struct {
	Success       bool
	Message       string
	HasConflicts  bool
	ConflictFiles []string
	Ahead         uint
	Behind        uint
}

// ErrRebaseUnsupported is returned by the embedded backend when asked to
// pull with the rebase strategy, which go-git does not implement. The
// dispatcher reacts by falling back to the system backend.
var ErrRebaseUnsupported = errors.New("embedded backend does not support rebase pulls")

// Backend is the capability surface shared by both execution backends.
// Recoverable conditions (authentication failure, conflicts, network loss)
// are reported inside the SyncResult; the error return is reserved for
// hard faults such as a missing repository or an unusable backend, which
// the dispatcher treats as grounds for fallback.
type Backend interface {
	Fetch(ctx context.Context, repoPath string, auth credential.Auth) (*SyncResult, error)
	Pull(ctx context.Context, repoPath string, auth credential.Auth, opts PullOptions) (*SyncResult, error)
	Push(ctx context.Context, repoPath string, auth credential.Auth, opts PushOptions) (*SyncResult, error)
	Clone(ctx context.Context, opts CloneOptions) error
}
