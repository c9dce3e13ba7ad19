package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tianchangNorth/githeart/internal/cloneop"
	"github.com/tianchangNorth/githeart/internal/credential"
	"github.com/tianchangNorth/githeart/internal/gitexec"
	"github.com/tianchangNorth/githeart/internal/remote"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [path]",
		Short: "Clone a repository with staged progress reporting",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			path := clonePath(url, args)
			return runClone(url, path)
		},
	}
}

// clonePath derives the target directory from the URL when none is given,
// the same way git does.
func clonePath(url string, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	base := filepath.Base(strings.TrimSuffix(url, ".git"))
	if i := strings.LastIndex(base, ":"); i >= 0 {
		base = base[i+1:]
	}
	return base
}

func runClone(url, path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	protocol := remote.Detect(url)
	auth, err := a.resolver.Resolve(ctx, protocol, remote.ExtractDomain(url), "")
	if err != nil {
		if !errors.Is(err, credential.ErrCredentialsRequired) {
			return err
		}
		// Anonymous HTTPS clone of a public repository is fine; a
		// missing token only matters if the remote rejects us.
		auth = credential.NoAuth()
	}

	tracker := a.tracker()
	id, events := tracker.Start(ctx, gitexec.CloneOptions{URL: url, Path: path, Auth: auth})

	go func() {
		<-ctx.Done()
		tracker.Cancel(id)
	}()

	for p := range events {
		line := fmt.Sprintf("%-12s %3d%%", p.Stage, p.Percent)
		if p.Rate > 0 {
			line += "  " + cloneop.FormatRate(p.Rate)
		}
		if p.Message != "" {
			line += "  " + p.Message
		}
		fmt.Println(line)
	}

	res, err := tracker.Result(id)
	if err != nil {
		return err
	}
	defer tracker.Cleanup(id)

	if !res.Success {
		return fmt.Errorf("clone failed: %s", res.Error)
	}
	fmt.Printf("cloned %d files into %s in %s\n", res.FileCount, res.Path, res.Duration.Round(time.Millisecond))
	return nil
}
