package gitsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tianchangNorth/githeart/internal/credential"
	"github.com/tianchangNorth/githeart/internal/gitexec"
)

// scriptedDispatcher plays back one result per action kind and records the
// sequence of dispatched actions.
type scriptedDispatcher struct {
	mu      sync.Mutex
	results map[gitexec.Action]*gitexec.SyncResult
	err     error
	actions []gitexec.Action
	reqs    []gitexec.Request
	block   chan struct{} // when non-nil, Dispatch waits on it
}

func (s *scriptedDispatcher) Dispatch(ctx context.Context, req gitexec.Request) (*gitexec.SyncResult, error) {
	s.mu.Lock()
	s.actions = append(s.actions, req.Action)
	s.reqs = append(s.reqs, req)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if s.err != nil {
		return nil, s.err
	}
	if res, ok := s.results[req.Action]; ok {
		out := *res
		return &out, nil
	}
	return &gitexec.SyncResult{Success: true, Message: "ok"}, nil
}

func (s *scriptedDispatcher) dispatched() []gitexec.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gitexec.Action(nil), s.actions...)
}

func newTestOrchestrator(t *testing.T, d Dispatcher, remoteURL string) (*Orchestrator, *credential.Resolver, credential.Store) {
	t.Helper()
	store := credential.NewMemoryStore()
	resolver := credential.NewResolver(store, t.TempDir())
	o := New("/repo", resolver, d, zerolog.Nop(), WithSettleDelay(0))
	o.remoteURL = func(string) (string, error) { return remoteURL, nil }
	o.sleep = func(time.Duration) {}
	return o, resolver, store
}

func storeToken(t *testing.T, store credential.Store, domain string) {
	t.Helper()
	cfg, err := credential.NewTokenConfig(domain, "ghp_test", "")
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), cfg))
}

func TestOrchestrator_FetchReplacesCounters(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 2, Behind: 5},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	res, err := o.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, uint(2), o.Ahead())
	assert.Equal(t, uint(5), o.Behind())
	assert.True(t, o.RemoteConnected())
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_SyncPushOnlyWhenAhead(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 3, Behind: 0},
		gitexec.ActionPush:  {Success: true, Ahead: 0, Behind: 0},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	res, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []gitexec.Action{gitexec.ActionFetch, gitexec.ActionPush}, d.dispatched(),
		"ahead with nothing behind must push without pulling")
	assert.Equal(t, uint(0), o.Ahead(), "counters replaced by the push result")
}

func TestOrchestrator_SyncConflictSkipsPush(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 1, Behind: 2},
		gitexec.ActionPull: {
			Success:       true,
			HasConflicts:  true,
			ConflictFiles: []string{"main.go"},
		},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	res, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.HasConflicts)
	assert.NotEmpty(t, res.ConflictFiles)
	assert.Equal(t, []gitexec.Action{gitexec.ActionFetch, gitexec.ActionPull}, d.dispatched(),
		"conflicts take precedence over any push")
	assert.Equal(t, []string{"main.go"}, o.ConflictFiles())
}

func TestOrchestrator_SyncPullsBeforePush(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 2, Behind: 3},
		gitexec.ActionPull:  {Success: true, Ahead: 2, Behind: 0},
		gitexec.ActionPush:  {Success: true, Ahead: 0, Behind: 0},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	settled := 0
	o.sleep = func(time.Duration) { settled++ }

	res, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []gitexec.Action{gitexec.ActionFetch, gitexec.ActionPull, gitexec.ActionPush}, d.dispatched())
	assert.Equal(t, 1, settled, "a settling delay must separate pull and push")
}

func TestOrchestrator_SyncHonorsConfiguredPullStrategy(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 0, Behind: 1},
		gitexec.ActionPull:  {Success: true},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")
	WithPullStrategy(gitexec.PullRebase)(o)

	_, err := o.Sync(context.Background())
	require.NoError(t, err)

	var pull *gitexec.Request
	for i := range d.reqs {
		if d.reqs[i].Action == gitexec.ActionPull {
			pull = &d.reqs[i]
		}
	}
	require.NotNil(t, pull)
	assert.Equal(t, gitexec.PullRebase, pull.Pull.Strategy)
}

func TestOrchestrator_SyncUpToDate(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionFetch: {Success: true, Ahead: 0, Behind: 0},
	}}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	res, err := o.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []gitexec.Action{gitexec.ActionFetch}, d.dispatched())
}

func TestOrchestrator_RejectsConcurrentOperations(t *testing.T) {
	d := &scriptedDispatcher{block: make(chan struct{})}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Fetch(context.Background())
	}()

	// Wait for the first operation to take the state machine out of Idle.
	require.Eventually(t, func() bool { return o.State() == StateFetching },
		time.Second, time.Millisecond)

	_, err := o.Pull(context.Background(), gitexec.PullMerge)
	assert.ErrorIs(t, err, ErrBusy)

	close(d.block)
	<-done
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_PendingCredentialsResumedExactlyOnce(t *testing.T) {
	d := &scriptedDispatcher{results: map[gitexec.Action]*gitexec.SyncResult{
		gitexec.ActionPush: {Success: true},
	}}
	o, _, _ := newTestOrchestrator(t, d, "https://github.com/org/repo.git")

	// No token stored: the push parks instead of proceeding
	// unauthenticated.
	_, err := o.Push(context.Background(), false, true)
	require.ErrorIs(t, err, ErrPendingCredentials)
	assert.Equal(t, StatePendingCredentials, o.State())
	assert.Empty(t, d.dispatched())

	cfg, err := credential.NewTokenConfig("github.com", "ghp_new", "")
	require.NoError(t, err)

	res, err := o.SupplyToken(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res, "the parked action must be resumed")
	assert.True(t, res.Success)
	assert.Equal(t, []gitexec.Action{gitexec.ActionPush}, d.dispatched())
	assert.Equal(t, StateIdle, o.State())

	// A second supply with nothing parked only stores the token.
	res, err = o.SupplyToken(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []gitexec.Action{gitexec.ActionPush}, d.dispatched(),
		"the original request must not run twice")
}

func TestOrchestrator_CancelPending(t *testing.T) {
	d := &scriptedDispatcher{}
	o, _, _ := newTestOrchestrator(t, d, "https://github.com/org/repo.git")

	_, err := o.Fetch(context.Background())
	require.ErrorIs(t, err, ErrPendingCredentials)

	o.CancelPending()
	assert.Equal(t, StateIdle, o.State())

	cfg, _ := credential.NewTokenConfig("github.com", "ghp_new", "")
	res, err := o.SupplyToken(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, res, "a cancelled action must not be resumed")
}

func TestOrchestrator_SuccessfulTokenUseUpdatesLastUsed(t *testing.T) {
	d := &scriptedDispatcher{}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	_, err := o.Fetch(context.Background())
	require.NoError(t, err)

	cfg, err := store.Retrieve(context.Background(), "github.com")
	require.NoError(t, err)
	assert.NotNil(t, cfg.LastUsed)
}

func TestOrchestrator_UnknownRemoteRunsUnauthenticated(t *testing.T) {
	d := &scriptedDispatcher{}
	o, _, _ := newTestOrchestrator(t, d, "")

	// No remote at all: detection must not block the operation.
	res, err := o.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestOrchestrator_DispatchErrorReturnsToIdle(t *testing.T) {
	d := &scriptedDispatcher{err: errors.New("backend exploded")}
	o, _, store := newTestOrchestrator(t, d, "https://github.com/org/repo.git")
	storeToken(t, store, "github.com")

	_, err := o.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, o.State())
}
