package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tianchangNorth/githeart/internal/gitexec"
	"github.com/tianchangNorth/githeart/internal/gitsync"
)

var (
	pullStrategy string
	pushForce    bool
	pushTags     bool
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Refresh ahead/behind counters without touching the worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncAction(func(ctx context.Context, a *app, o *gitsync.Orchestrator) (*gitexec.SyncResult, error) {
				return o.Fetch(ctx)
			})
		},
	}
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Integrate remote commits into the local branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncAction(func(ctx context.Context, a *app, o *gitsync.Orchestrator) (*gitexec.SyncResult, error) {
				strategy := pullStrategy
				if strategy == "" {
					strategy = a.cfg.PullStrategy
				}
				return o.Pull(ctx, gitexec.PullStrategy(strategy))
			})
		},
	}
	cmd.Flags().StringVarP(&pullStrategy, "strategy", "s", "", "Pull strategy: merge or rebase (default from config)")
	return cmd
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish local commits to the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncAction(func(ctx context.Context, a *app, o *gitsync.Orchestrator) (*gitexec.SyncResult, error) {
				return o.Push(ctx, pushForce, pushTags)
			})
		},
	}
	cmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Allow non-fast-forward pushes")
	cmd.Flags().BoolVarP(&pushTags, "tags", "t", false, "Also push local tags")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull if behind, then push if ahead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncAction(func(ctx context.Context, a *app, o *gitsync.Orchestrator) (*gitexec.SyncResult, error) {
				return o.Sync(ctx)
			})
		},
	}
}

func runSyncAction(action func(context.Context, *app, *gitsync.Orchestrator) (*gitexec.SyncResult, error)) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	o := a.orchestrator(repoPath)
	res, err := action(context.Background(), a, o)
	if err != nil {
		if errors.Is(err, gitsync.ErrPendingCredentials) {
			return fmt.Errorf("no usable token for this remote: store one with %q and retry", "githeart token set")
		}
		return err
	}

	printResult(res, o)
	if !res.Success {
		osExit(1)
	}
	return nil
}

func printResult(res *gitexec.SyncResult, o *gitsync.Orchestrator) {
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	fmt.Printf("ahead %d, behind %d\n", o.Ahead(), o.Behind())
	if res.HasConflicts {
		fmt.Println("conflicts require manual resolution:")
		for _, f := range res.ConflictFiles {
			fmt.Printf("  %s\n", f)
		}
	}
}
