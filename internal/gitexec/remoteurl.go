package gitexec

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
)

// RemoteURL reads the configured fetch URL of a repository's origin remote.
// No network access is involved; a repository without an origin remote is
// reported as an error so callers can classify the protocol as unknown.
func RemoteURL(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	rem, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("no origin remote configured: %w", err)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin remote has no URL")
	}
	return urls[0], nil
}
