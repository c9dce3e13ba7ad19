// Package gitsync sequences detect, resolve, dispatch, and
// interpret-result for fetch, pull, and push against one repository, and
// drives the composite sync (pull then push) action. State lives only in
// memory for the lifetime of a session; nothing here is persisted.
package gitsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/credential"
	"github.com/tianchangNorth/githeart/internal/gitexec"
	"github.com/tianchangNorth/githeart/internal/remote"
)

// State is the orchestrator's per-repository operation state.
type State int

const (
	StateIdle State = iota
	StateFetching
	StatePulling
	StatePushing
	// StatePendingCredentials suspends an HTTPS action until a token is
	// supplied out-of-band; the suspended action is resumed exactly once.
	StatePendingCredentials
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StatePulling:
		return "pulling"
	case StatePushing:
		return "pushing"
	case StatePendingCredentials:
		return "pending-credentials"
	default:
		return "idle"
	}
}

// ErrBusy rejects a second concurrent action against the same repository.
// The working directory is an exclusive resource; two mutating Git
// operations must never interleave on it.
var ErrBusy = errors.New("another operation is already running for this repository")

// ErrPendingCredentials is surfaced when an HTTPS action cannot proceed
// without a token. The action is parked, not dropped: SupplyToken resumes
// it.
var ErrPendingCredentials = credential.ErrCredentialsRequired

// Dispatcher is the slice of gitexec.Dispatcher the orchestrator needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req gitexec.Request) (*gitexec.SyncResult, error)
}

// defaultSettleDelay separates the pull and push halves of a sync so the
// executing backend can release repository locks between them.
const defaultSettleDelay = 500 * time.Millisecond

// Orchestrator is the stateful control loop for one repository.
type Orchestrator struct {
	repoPath   string
	resolver   *credential.Resolver
	dispatcher Dispatcher
	log        zerolog.Logger

	settleDelay  time.Duration
	pullStrategy gitexec.PullStrategy
	remoteURL    func(string) (string, error) // seam for tests
	sleep        func(time.Duration)

	mu            sync.Mutex
	state         State
	ahead         uint
	behind        uint
	conflictFiles []string
	remoteOK      bool
	pending       *gitexec.Request
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithSettleDelay overrides the delay between the pull and push halves of
// Sync.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

// WithPullStrategy sets the strategy Sync uses for its pull half.
func WithPullStrategy(s gitexec.PullStrategy) Option {
	return func(o *Orchestrator) {
		if s != "" {
			o.pullStrategy = s
		}
	}
}

// New creates an orchestrator for repoPath. The dispatcher's
// authentication-failure handler is pointed at the resolver so a rejected
// token downgrades the domain's configured flag.
func New(repoPath string, resolver *credential.Resolver, dispatcher Dispatcher, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repoPath:     repoPath,
		resolver:     resolver,
		dispatcher:   dispatcher,
		log:          log.With().Str("component", "gitsync").Str("repo", repoPath).Logger(),
		settleDelay:  defaultSettleDelay,
		pullStrategy: gitexec.PullMerge,
		remoteURL:    gitexec.RemoteURL,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	if d, ok := dispatcher.(*gitexec.Dispatcher); ok {
		d.SetAuthFailureHandler(resolver.MarkStale)
	}
	return o
}

// State returns the current operation state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Ahead and Behind report the counters from the most recent operation.
func (o *Orchestrator) Ahead() uint {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ahead
}

func (o *Orchestrator) Behind() uint {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.behind
}

// ConflictFiles returns the files left unmerged by the last pull, if any.
func (o *Orchestrator) ConflictFiles() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.conflictFiles...)
}

// RemoteConnected reports whether the last operation reached the remote.
func (o *Orchestrator) RemoteConnected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remoteOK
}

// Fetch refreshes the ahead/behind counters without touching the worktree.
func (o *Orchestrator) Fetch(ctx context.Context) (*gitexec.SyncResult, error) {
	return o.run(ctx, StateFetching, gitexec.Request{Action: gitexec.ActionFetch})
}

// Pull integrates remote commits using the given strategy. A conflicted
// pull is a soft failure: the result carries the conflict file list and the
// caller is expected to drive manual resolution.
func (o *Orchestrator) Pull(ctx context.Context, strategy gitexec.PullStrategy) (*gitexec.SyncResult, error) {
	if strategy == "" {
		strategy = gitexec.PullMerge
	}
	return o.run(ctx, StatePulling, gitexec.Request{
		Action: gitexec.ActionPull,
		Pull:   gitexec.PullOptions{Strategy: strategy},
	})
}

// Push publishes local commits. Force and tags are independent flags
// combined into a single push.
func (o *Orchestrator) Push(ctx context.Context, force, tags bool) (*gitexec.SyncResult, error) {
	return o.run(ctx, StatePushing, gitexec.Request{
		Action: gitexec.ActionPush,
		Push:   gitexec.PushOptions{Force: force, Tags: tags},
	})
}

// Sync fetches, then pulls if behind, then pushes if ahead. Conflicts from
// the pull half veto the push half entirely. When both halves run, a
// settling delay separates them.
func (o *Orchestrator) Sync(ctx context.Context) (*gitexec.SyncResult, error) {
	fetched, err := o.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if !fetched.Success {
		return fetched, nil
	}

	last := fetched
	pulled := false

	if fetched.Behind > 0 {
		res, err := o.Pull(ctx, o.pullStrategy)
		if err != nil {
			return nil, err
		}
		if res.HasConflicts || !res.Success {
			// Conflicts take precedence over any push.
			return res, nil
		}
		last = res
		pulled = true
	}

	o.mu.Lock()
	ahead := o.ahead
	o.mu.Unlock()

	if ahead > 0 {
		if pulled {
			o.sleep(o.settleDelay)
		}
		res, err := o.Push(ctx, false, false)
		if err != nil {
			return nil, err
		}
		last = res
	}

	if last == fetched {
		return &gitexec.SyncResult{Success: true, Message: "already in sync"}, nil
	}
	return last, nil
}

// SupplyToken stores a token supplied out-of-band while an action is
// parked in StatePendingCredentials, then resumes that action exactly
// once. It may also be called with no action parked, in which case it only
// stores the token.
func (o *Orchestrator) SupplyToken(ctx context.Context, cfg credential.TokenConfig) (*gitexec.SyncResult, error) {
	if err := o.resolver.StoreToken(ctx, cfg); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.state != StatePendingCredentials || o.pending == nil {
		o.mu.Unlock()
		return nil, nil
	}
	req := *o.pending
	o.pending = nil
	o.state = StateIdle
	o.mu.Unlock()

	o.log.Info().Str("domain", cfg.Domain).Str("action", req.Action.String()).
		Msg("credentials supplied, resuming suspended action")

	state := StateFetching
	switch req.Action {
	case gitexec.ActionPull:
		state = StatePulling
	case gitexec.ActionPush:
		state = StatePushing
	}
	return o.run(ctx, state, req)
}

// CancelPending drops a parked action and returns to Idle.
func (o *Orchestrator) CancelPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StatePendingCredentials {
		o.pending = nil
		o.state = StateIdle
	}
}

// run executes one action end to end: detect protocol, resolve
// credentials, dispatch, interpret the result.
func (o *Orchestrator) run(ctx context.Context, busy State, req gitexec.Request) (*gitexec.SyncResult, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.state = busy
	o.mu.Unlock()

	req.RepoPath = o.repoPath

	url, err := o.remoteURL(o.repoPath)
	if err != nil {
		url = ""
	}
	req.Protocol = remote.Detect(url)
	req.Domain = remote.ExtractDomain(url)

	auth, err := o.resolver.Resolve(ctx, req.Protocol, req.Domain, o.repoPath)
	if err != nil {
		if errors.Is(err, credential.ErrCredentialsRequired) {
			o.mu.Lock()
			o.state = StatePendingCredentials
			o.pending = &req
			o.mu.Unlock()
			o.log.Info().Str("domain", req.Domain).Str("action", req.Action.String()).
				Msg("no usable token, suspending action until credentials are supplied")
			return nil, ErrPendingCredentials
		}
		o.toIdle()
		return nil, err
	}
	req.Auth = auth

	result, err := o.dispatcher.Dispatch(ctx, req)
	if err != nil {
		o.toIdle()
		return nil, err
	}

	o.mu.Lock()
	// Counters are replaced wholesale by the latest result, never merged.
	o.ahead = result.Ahead
	o.behind = result.Behind
	o.remoteOK = result.Success
	if req.Action == gitexec.ActionPull {
		o.conflictFiles = append([]string(nil), result.ConflictFiles...)
	}
	o.state = StateIdle
	o.mu.Unlock()

	if result.Success && auth.Kind == credential.AuthToken && req.Domain != "" {
		if err := o.resolver.MarkUsed(ctx, req.Domain); err != nil {
			o.log.Debug().Err(err).Str("domain", req.Domain).Msg("failed to record token use")
		}
	}

	o.log.Info().
		Str("action", req.Action.String()).
		Str("protocol", req.Protocol.String()).
		Bool("success", result.Success).
		Uint("ahead", result.Ahead).
		Uint("behind", result.Behind).
		Bool("conflicts", result.HasConflicts).
		Msg("sync operation finished")

	return result, nil
}

func (o *Orchestrator) toIdle() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}
