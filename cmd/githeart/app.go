package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/cloneop"
	"github.com/tianchangNorth/githeart/internal/config"
	"github.com/tianchangNorth/githeart/internal/credential"
	"github.com/tianchangNorth/githeart/internal/gitexec"
	"github.com/tianchangNorth/githeart/internal/gitsync"
)

// app is the composition root: one config load, one token store, one
// dispatcher, shared by whichever command runs.
type app struct {
	cfg        *config.Config
	store      credential.Store
	resolver   *credential.Resolver
	dispatcher *gitexec.Dispatcher
	log        zerolog.Logger
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := credential.NewFileStore(cfg.TokenStorePath)
	if err != nil {
		return nil, err
	}

	log := newLogger()
	dispatcher := gitexec.NewDispatcher(
		gitexec.NewEmbeddedBackend(log),
		gitexec.NewSystemBackend(log),
		log,
	)

	return &app{
		cfg:        cfg,
		store:      store,
		resolver:   credential.NewResolver(store, cfg.SSHDir),
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(context.Background()); err != nil {
		a.log.Debug().Err(err).Msg("failed to close token store")
	}
}

func (a *app) orchestrator(repo string) *gitsync.Orchestrator {
	return gitsync.New(repo, a.resolver, a.dispatcher, a.log,
		gitsync.WithSettleDelay(a.cfg.SettleDuration()),
		gitsync.WithPullStrategy(gitexec.PullStrategy(a.cfg.PullStrategy)))
}

func (a *app) tracker() *cloneop.Tracker {
	return cloneop.NewTracker(a.dispatcher, a.log)
}
