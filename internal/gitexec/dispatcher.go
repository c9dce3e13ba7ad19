package gitexec

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/credential"
	"github.com/tianchangNorth/githeart/internal/remote"
)

// Request describes one dispatched sync operation.
type Request struct {
	Action   Action
	Protocol remote.Protocol
	Auth     credential.Auth
	RepoPath string
	// Domain is the remote host, used only to attribute authentication
	// failures back to the stored token.
	Domain string
	Pull   PullOptions
	Push   PushOptions
}

// Dispatcher selects an execution backend per operation:
//
//   - SSH remotes always use the system git subprocess; embedded-library
//     SSH transport is unreliable across platform agent configurations.
//   - HTTPS and unknown remotes prefer the embedded backend, falling back
//     to the system backend when the library reports a hard fault.
//
// Authentication failures on HTTPS are additionally reported through the
// installed handler so the owning orchestrator can mark the stored token
// stale and prompt for re-entry instead of failing silently.
type Dispatcher struct {
	embedded Backend
	system   Backend
	log      zerolog.Logger

	onAuthFailure func(domain string)
}

// NewDispatcher wires the two backends.
func NewDispatcher(embedded, system Backend, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		embedded: embedded,
		system:   system,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// SetAuthFailureHandler installs the callback invoked when an HTTPS
// operation fails authentication for a domain.
func (d *Dispatcher) SetAuthFailureHandler(fn func(domain string)) {
	d.onAuthFailure = fn
}

// Dispatch runs one fetch/pull/push through the selected backend and
// returns its structured result. A missing repository path is a programmer
// error and fails fast; all operational failures come back inside the
// SyncResult.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*SyncResult, error) {
	if req.RepoPath == "" {
		return nil, fmt.Errorf("repository path must be specified")
	}

	var result *SyncResult
	var err error
	switch req.Protocol {
	case remote.SSH:
		result, err = d.invoke(ctx, d.system, req)
	case remote.HTTPS, remote.Unknown:
		result, err = d.invoke(ctx, d.embedded, req)
		if err != nil {
			// Library fault: retry once through the system binary.
			d.log.Warn().Err(err).
				Str("repo", req.RepoPath).
				Str("action", req.Action.String()).
				Msg("embedded backend failed, falling back to system git")
			result, err = d.invoke(ctx, d.system, req)
		}
	}
	if err != nil {
		return nil, err
	}

	if !result.Success && req.Protocol == remote.HTTPS &&
		req.Auth.Kind != credential.AuthNone &&
		Classify(result.Message) == FailureAuth {
		d.log.Info().Str("domain", req.Domain).Msg("authentication failure, marking stored token stale")
		if d.onAuthFailure != nil {
			d.onAuthFailure(req.Domain)
		}
	}
	return result, nil
}

// Clone runs a clone through the backend chosen by the same protocol
// policy. The protocol is detected from the clone URL, since no local
// repository exists yet.
func (d *Dispatcher) Clone(ctx context.Context, protocol remote.Protocol, opts CloneOptions) error {
	if opts.URL == "" || opts.Path == "" {
		return fmt.Errorf("clone URL and target path must be specified")
	}
	if protocol == remote.SSH {
		return d.system.Clone(ctx, opts)
	}
	if err := d.embedded.Clone(ctx, opts); err != nil {
		if ctx.Err() != nil {
			return err
		}
		d.log.Warn().Err(err).Str("url", opts.URL).Msg("embedded clone failed, falling back to system git")
		return d.system.Clone(ctx, opts)
	}
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, backend Backend, req Request) (*SyncResult, error) {
	switch req.Action {
	case ActionPull:
		return backend.Pull(ctx, req.RepoPath, req.Auth, req.Pull)
	case ActionPush:
		return backend.Push(ctx, req.RepoPath, req.Auth, req.Push)
	default:
		return backend.Fetch(ctx, req.RepoPath, req.Auth)
	}
}
