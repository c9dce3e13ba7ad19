package gitexec

import (
	"context"
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/credential"
)

// EmbeddedBackend executes Git operations in-process through go-git. It is
// the preferred backend for token-authenticated HTTPS and for anonymous
// access; SSH transport is left to the system backend.
type EmbeddedBackend struct {
	log zerolog.Logger
}

// NewEmbeddedBackend creates the go-git backed executor.
func NewEmbeddedBackend(log zerolog.Logger) *EmbeddedBackend {
	return &EmbeddedBackend{log: log.With().Str("backend", "embedded").Logger()}
}

// authMethod converts a resolved descriptor to a go-git transport method.
func authMethod(auth credential.Auth) (transport.AuthMethod, error) {
	switch auth.Kind {
	case credential.AuthToken:
		username := auth.Username
		if username == "" {
			username = "git"
		}
		return &githttp.BasicAuth{Username: username, Password: auth.Token}, nil
	case credential.AuthPassword:
		return &githttp.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	case credential.AuthSSHKey:
		keys, err := gitssh.NewPublicKeysFromFile("git", auth.KeyPath, auth.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key %s: %w", auth.KeyPath, err)
		}
		return keys, nil
	default:
		return nil, nil
	}
}

// Fetch implements Backend.Fetch
func (b *EmbeddedBackend) Fetch(ctx context.Context, repoPath string, auth credential.Auth) (*SyncResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, NewError("fetch", fmt.Errorf("failed to open repository: %w", err))
	}
	am, err := authMethod(auth)
	if err != nil {
		return nil, NewError("fetch", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       am,
		Tags:       git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		b.log.Debug().Err(err).Str("repo", repoPath).Msg("fetch failed")
		return failureResult(err), nil
	}

	ahead, behind := aheadBehind(repo)
	msg := "fetch completed"
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		msg = "already up to date"
	}
	return &SyncResult{Success: true, Message: msg, Ahead: ahead, Behind: behind}, nil
}

// Pull implements Backend.Pull. Rebase pulls are refused with a hard error
// so the dispatcher can fall back to the system backend.
func (b *EmbeddedBackend) Pull(ctx context.Context, repoPath string, auth credential.Auth, opts PullOptions) (*SyncResult, error) {
	if opts.Strategy == PullRebase {
		return nil, ErrRebaseUnsupported
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, NewError("pull", fmt.Errorf("failed to open repository: %w", err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, NewError("pull", fmt.Errorf("failed to open worktree: %w", err))
	}
	am, err := authMethod(auth)
	if err != nil {
		return nil, NewError("pull", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       am,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if Classify(err.Error()) == FailureConflict {
			files := conflictFiles(wt)
			return &SyncResult{
				Success:       true,
				Message:       "pull completed with conflicts requiring manual resolution",
				HasConflicts:  true,
				ConflictFiles: files,
			}, nil
		}
		b.log.Debug().Err(err).Str("repo", repoPath).Msg("pull failed")
		return failureResult(err), nil
	}

	ahead, behind := aheadBehind(repo)
	msg := "pull completed"
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		msg = "already up to date"
	}
	return &SyncResult{Success: true, Message: msg, Ahead: ahead, Behind: behind}, nil
}

// Push implements Backend.Push
func (b *EmbeddedBackend) Push(ctx context.Context, repoPath string, auth credential.Auth, opts PushOptions) (*SyncResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, NewError("push", fmt.Errorf("failed to open repository: %w", err))
	}
	am, err := authMethod(auth)
	if err != nil {
		return nil, NewError("push", err)
	}

	popts := &git.PushOptions{
		RemoteName: "origin",
		Auth:       am,
		FollowTags: opts.Tags,
	}
	if opts.Force {
		popts.RefSpecs = []config.RefSpec{"+refs/heads/*:refs/heads/*"}
	}

	err = repo.PushContext(ctx, popts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		b.log.Debug().Err(err).Str("repo", repoPath).Msg("push failed")
		return failureResult(err), nil
	}

	ahead, behind := aheadBehind(repo)
	msg := "push completed"
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		msg = "everything up to date"
	}
	return &SyncResult{Success: true, Message: msg, Ahead: ahead, Behind: behind}, nil
}

// Clone implements Backend.Clone
func (b *EmbeddedBackend) Clone(ctx context.Context, opts CloneOptions) error {
	am, err := authMethod(opts.Auth)
	if err != nil {
		return NewError("clone", err)
	}

	cloneOpts := &git.CloneOptions{
		URL:  opts.URL,
		Auth: am,
	}
	if opts.OnTransfer != nil {
		cloneOpts.Progress = newSidebandParser(opts.OnTransfer)
	}

	if _, err := git.PlainCloneContext(ctx, opts.Path, false, cloneOpts); err != nil {
		return NewError("clone", err)
	}
	return nil
}

// failureResult converts a recoverable backend error into a SyncResult.
func failureResult(err error) *SyncResult {
	return &SyncResult{Success: false, Message: err.Error()}
}

// conflictFiles lists paths with unmerged entries in the worktree.
func conflictFiles(wt *git.Worktree) []string {
	status, err := wt.Status()
	if err != nil {
		return nil
	}
	var files []string
	for path, st := range status {
		if st.Staging == git.UpdatedButUnmerged || st.Worktree == git.UpdatedButUnmerged {
			files = append(files, path)
		}
	}
	return files
}

// aheadBehind counts local-only and remote-only commits between HEAD's
// branch and its origin tracking ref. A missing upstream yields zeros; the
// walk is bounded so pathological histories cannot stall an operation.
func aheadBehind(repo *git.Repository) (ahead, behind uint) {
	head, err := repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return 0, 0
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", head.Name().Short()), true)
	if err != nil {
		return 0, 0
	}
	if head.Hash() == remoteRef.Hash() {
		return 0, 0
	}

	localSet := ancestorSet(repo, head.Hash())
	remoteSet := ancestorSet(repo, remoteRef.Hash())
	for h := range localSet {
		if _, ok := remoteSet[h]; !ok {
			ahead++
		}
	}
	for h := range remoteSet {
		if _, ok := localSet[h]; !ok {
			behind++
		}
	}
	return ahead, behind
}

const ancestorWalkLimit = 2048

func ancestorSet(repo *git.Repository, from plumbing.Hash) map[plumbing.Hash]struct{} {
	seen := make(map[plumbing.Hash]struct{})
	queue := []plumbing.Hash{from}
	for len(queue) > 0 && len(seen) < ancestorWalkLimit {
		h := queue[0]
		queue = queue[1:]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			continue
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return seen
}
