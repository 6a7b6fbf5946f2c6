// Package service implements the rules snapshot and cursor ports
package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"tipjar/internal/core/tipping"
	"tipjar/internal/modkit"
	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"
	"tipjar/internal/services/rules/domain"
	"tipjar/internal/services/rules/repo"
)

// Config controls the rules service
type Config struct {
	RefreshEvery time.Duration
}

// Svc loads bot parameters and tipping levels into immutable snapshots
type Svc struct {
	deps modkit.Deps
	cfg  Config
	repo repo.Repo
	log  logger.Logger

	snap atomic.Pointer[tipping.Snapshot]
}

// New constructs the rules service and performs no I/O
func New(deps modkit.Deps, cfg Config) *Svc {
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = time.Minute
	}
	return &Svc{
		deps: deps,
		cfg:  cfg,
		repo: repo.NewPG().Bind(deps.PG),
		log:  *logger.Named("rules"),
	}
}

// Current returns the latest snapshot by value.
// Callers must Refresh (or Run) at least once first
func (s *Svc) Current() tipping.Snapshot {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return tipping.Snapshot{}
}

// Refresh reloads params and levels and swaps the snapshot atomically
func (s *Svc) Refresh(ctx context.Context) error {
	params, err := s.repo.Params(ctx)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "rules refresh params")
	}
	levels, err := s.repo.Levels(ctx)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "rules refresh levels")
	}

	next := build(params, levels)
	s.snap.Store(&next)
	s.log.Debug().
		Int("levels", len(next.Levels)).
		Int("banned_callers", len(next.BannedCallers)).
		Msg("rules snapshot refreshed")
	return nil
}

// Run refreshes immediately and then on a ticker until ctx is canceled
func (s *Svc) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	t := time.NewTicker(s.cfg.RefreshEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := s.Refresh(ctx); err != nil {
				// keep serving the previous snapshot
				s.log.Warn().Err(err).Msg("rules refresh failed")
			}
		}
	}
}

// Levels lists all configured tipping levels
func (s *Svc) Levels(ctx context.Context) ([]domain.Level, error) {
	return s.repo.Levels(ctx)
}

// LoadCursor reads the feed checkpoint
func (s *Svc) LoadCursor(ctx context.Context) (uint32, error) {
	return s.repo.GetCursor(ctx)
}

// SaveCursor writes the feed checkpoint
func (s *Svc) SaveCursor(ctx context.Context, block uint32) error {
	return s.repo.SetCursor(ctx, block)
}

// build assembles the immutable snapshot from persisted rows
func build(p domain.Params, levels []domain.Level) tipping.Snapshot {
	s := tipping.Snapshot{
		BotAccount:       p.BotAccount,
		TokenSymbol:      p.TokenSymbol,
		Levels:           make(map[string]tipping.Level, len(levels)),
		BannedCallers:    toSet(p.BannedCallers),
		BannedRecipients: toSet(p.BannedRecipients),
		NoLimit:          toSet(p.NoLimitSenders),
		MaxCommands:      p.MaxCommands,
		RequireStake:     p.RequireStake,
		TransfersEnabled: p.TransfersEnabled,
		VotesEnabled:     p.VotesEnabled,
		VoteMandatory:    p.VoteMandatory,
	}
	for _, l := range levels {
		s.Levels[strings.ToUpper(l.Command)] = l
	}
	return s
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = struct{}{}
	}
	return out
}

var _ domain.SnapshotPort = (*Svc)(nil)
var _ domain.CursorPort = (*Svc)(nil)
var _ domain.LevelsPort = (*Svc)(nil)
