package gitexec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/credential"
)

// SystemBackend executes Git operations by shelling out to the system git
// binary. It is the required backend for SSH remotes, where the key is
// passed through an SSH command override, and the fallback when the
// embedded backend cannot serve an operation.
type SystemBackend struct {
	log zerolog.Logger
}

// NewSystemBackend creates the subprocess-based executor.
func NewSystemBackend(log zerolog.Logger) *SystemBackend {
	return &SystemBackend{log: log.With().Str("backend", "system").Logger()}
}

// Subprocess runners are variables so tests can intercept them, in the
// style of the package-level runGitCommand seam.
var execGit = func(ctx context.Context, dir string, env []string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = env
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

var execGitStream = func(ctx context.Context, dir string, env []string, progress io.Writer, args ...string) (stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = env
	var errBuf bytes.Buffer
	cmd.Stdout = io.Discard
	if progress != nil {
		cmd.Stderr = io.MultiWriter(progress, &errBuf)
	} else {
		cmd.Stderr = &errBuf
	}
	err = cmd.Run()
	return errBuf.String(), err
}

// buildEnv hardens the subprocess environment: no interactive prompts, and
// the resolved SSH key selected via GIT_SSH_COMMAND when present.
func buildEnv(auth credential.Auth) []string {
	env := append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=",
		"LC_ALL=C",
	)
	if auth.Kind == credential.AuthSSHKey && auth.KeyPath != "" {
		// The key path is quoted: GIT_SSH_COMMAND is shell-parsed, and
		// home directories with spaces would split into arguments.
		env = append(env, fmt.Sprintf(
			"GIT_SSH_COMMAND=ssh -i \"%s\" -o IdentitiesOnly=yes -o BatchMode=yes", auth.KeyPath))
	}
	return env
}

// authArgs injects HTTPS credentials without rewriting the remote URL.
func authArgs(auth credential.Auth) []string {
	var user, secret string
	switch auth.Kind {
	case credential.AuthToken:
		user, secret = auth.Username, auth.Token
		if user == "" {
			user = "git"
		}
	case credential.AuthPassword:
		user, secret = auth.Username, auth.Password
	default:
		return nil
	}
	basic := base64.StdEncoding.EncodeToString([]byte(user + ":" + secret))
	return []string{"-c", "http.extraHeader=Authorization: Basic " + basic}
}

// failureMessage prefers git's stderr text over the bare exit error.
func failureMessage(stderr string, err error) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return "git command failed"
}

// Fetch implements Backend.Fetch
func (b *SystemBackend) Fetch(ctx context.Context, repoPath string, auth credential.Auth) (*SyncResult, error) {
	args := append(authArgs(auth), "fetch", "--prune", "origin")
	_, stderr, err := execGit(ctx, repoPath, buildEnv(auth), args...)
	if err != nil {
		msg := failureMessage(stderr, err)
		b.log.Debug().Str("repo", repoPath).Str("stderr", msg).Msg("fetch failed")
		return &SyncResult{Success: false, Message: msg}, nil
	}

	ahead, behind := b.aheadBehind(ctx, repoPath)
	return &SyncResult{Success: true, Message: "fetch completed", Ahead: ahead, Behind: behind}, nil
}

// Pull implements Backend.Pull
func (b *SystemBackend) Pull(ctx context.Context, repoPath string, auth credential.Auth, opts PullOptions) (*SyncResult, error) {
	strategyFlag := "--no-rebase"
	if opts.Strategy == PullRebase {
		strategyFlag = "--rebase"
	}
	args := append(authArgs(auth), "pull", strategyFlag, "origin")

	stdout, stderr, err := execGit(ctx, repoPath, buildEnv(auth), args...)
	if err != nil {
		combined := failureMessage(stderr+"\n"+stdout, err)
		if Classify(combined) == FailureConflict {
			return &SyncResult{
				Success:       true,
				Message:       "pull completed with conflicts requiring manual resolution",
				HasConflicts:  true,
				ConflictFiles: b.unmergedFiles(ctx, repoPath),
			}, nil
		}
		b.log.Debug().Str("repo", repoPath).Str("stderr", combined).Msg("pull failed")
		return &SyncResult{Success: false, Message: combined}, nil
	}

	ahead, behind := b.aheadBehind(ctx, repoPath)
	return &SyncResult{Success: true, Message: "pull completed", Ahead: ahead, Behind: behind}, nil
}

// Push implements Backend.Push
func (b *SystemBackend) Push(ctx context.Context, repoPath string, auth credential.Auth, opts PushOptions) (*SyncResult, error) {
	args := append(authArgs(auth), "push")
	if opts.Force {
		args = append(args, "--force")
	}
	args = append(args, "origin", "HEAD")
	if opts.Tags {
		args = append(args, "--tags")
	}

	_, stderr, err := execGit(ctx, repoPath, buildEnv(auth), args...)
	if err != nil {
		msg := failureMessage(stderr, err)
		b.log.Debug().Str("repo", repoPath).Str("stderr", msg).Msg("push failed")
		return &SyncResult{Success: false, Message: msg}, nil
	}

	ahead, behind := b.aheadBehind(ctx, repoPath)
	return &SyncResult{Success: true, Message: "push completed", Ahead: ahead, Behind: behind}, nil
}

// Clone implements Backend.Clone. Progress lines git writes to stderr are
// streamed through the sideband parser into the caller's transfer callback.
func (b *SystemBackend) Clone(ctx context.Context, opts CloneOptions) error {
	args := append(authArgs(opts.Auth), "clone", "--progress", opts.URL, opts.Path)

	var progress io.Writer
	if opts.OnTransfer != nil {
		progress = newSidebandParser(opts.OnTransfer)
	}
	stderr, err := execGitStream(ctx, "", buildEnv(opts.Auth), progress, args...)
	if err != nil {
		return NewError("clone", fmt.Errorf("%s", failureMessage(stderr, err)))
	}
	return nil
}

// aheadBehind asks git for the left/right commit counts against the
// upstream of the current branch. A missing upstream yields zeros.
func (b *SystemBackend) aheadBehind(ctx context.Context, repoPath string) (uint, uint) {
	out, _, err := execGit(ctx, repoPath, buildEnv(credential.NoAuth()),
		"rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return 0, 0
	}
	ahead, err1 := strconv.ParseUint(fields[0], 10, 32)
	behind, err2 := strconv.ParseUint(fields[1], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return uint(ahead), uint(behind)
}

// unmergedFiles lists paths left in conflict by a merge.
func (b *SystemBackend) unmergedFiles(ctx context.Context, repoPath string) []string {
	out, _, err := execGit(ctx, repoPath, buildEnv(credential.NoAuth()),
		"diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}
