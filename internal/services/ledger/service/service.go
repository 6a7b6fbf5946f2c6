// Package service implements the idempotency ledger port
package service

import (
	"context"
	"time"

	"tipjar/internal/modkit"
	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"
	"tipjar/internal/services/ledger/domain"
	"tipjar/internal/services/ledger/repo"
)

// Config controls ledger behavior
type Config struct {
	// RecoveryWindow is how long a pending row stays claimed before a
	// redelivery may resume it
	RecoveryWindow time.Duration
}

// Svc is the ledger service
type Svc struct {
	deps modkit.Deps
	cfg  Config
	repo repo.Repo
	log  logger.Logger
	now  func() time.Time
}

// New constructs the ledger service
func New(deps modkit.Deps, cfg Config) *Svc {
	if cfg.RecoveryWindow <= 0 {
		cfg.RecoveryWindow = 10 * time.Minute
	}
	return &Svc{
		deps: deps,
		cfg:  cfg,
		repo: repo.NewPG().Bind(deps.PG),
		log:  *logger.Named("ledger"),
		now:  time.Now,
	}
}

// Admit claims an event or reports why it cannot be claimed.
// The verdict derives entirely from the durable row, never from memory
func (s *Svc) Admit(ctx context.Context, in domain.AdmitInput) (domain.Admission, error) {
	if in.EventID == "" {
		return domain.Admission{}, perr.New(perr.ErrorCodeInvalidArgument, "ledger admit: empty event id")
	}

	created, err := s.repo.Insert(ctx, in)
	if err != nil {
		return domain.Admission{}, err
	}
	if created {
		entry, err := s.repo.Get(ctx, in.EventID)
		if err != nil {
			return domain.Admission{}, err
		}
		return domain.Admission{Verdict: domain.VerdictAdmitted, Entry: entry}, nil
	}

	entry, err := s.repo.Get(ctx, in.EventID)
	if err != nil {
		return domain.Admission{}, err
	}
	if entry.State.Terminal() {
		return domain.Admission{Verdict: domain.VerdictAlreadyHandled, Entry: entry}, nil
	}

	cutoff := s.now().UTC().Add(-s.cfg.RecoveryWindow)
	claimed, err := s.repo.Claim(ctx, in.EventID, cutoff)
	if err != nil {
		return domain.Admission{}, err
	}
	if !claimed {
		return domain.Admission{Verdict: domain.VerdictInProgressElsewhere, Entry: entry}, nil
	}

	// re-read so resumed attempt counters and leg states are current
	entry, err = s.repo.Get(ctx, in.EventID)
	if err != nil {
		return domain.Admission{}, err
	}
	s.log.Info().
		Str("event_id", in.EventID).
		Int("tip_attempts", entry.TipAttempts).
		Int("vote_attempts", entry.VoteAttempts).
		Str("tip_state", string(entry.TipState)).
		Str("vote_state", string(entry.VoteState)).
		Msg("resuming stale pending entry")
	return domain.Admission{Verdict: domain.VerdictResumed, Entry: entry}, nil
}

// RecordAttempt bumps a leg attempt counter
func (s *Svc) RecordAttempt(ctx context.Context, eventID string, leg domain.Leg, errClass string) error {
	return s.repo.RecordAttempt(ctx, eventID, leg, errClass)
}

// MarkLeg records a leg sub-outcome durably
func (s *Svc) MarkLeg(ctx context.Context, eventID string, leg domain.Leg, state domain.LegState) error {
	return s.repo.MarkLeg(ctx, eventID, leg, state)
}

// Finalize moves the entry to a terminal state exactly once
func (s *Svc) Finalize(
	ctx context.Context,
	eventID string,
	state domain.State,
	reason string,
	amount float64,
	weight int,
) error {
	if !state.Terminal() {
		return perr.Newf(perr.ErrorCodeInvalidArgument, "ledger finalize: %q is not terminal", state)
	}
	return s.repo.Finalize(ctx, eventID, state, reason, amount, weight)
}

// Get returns the entry for an event id
func (s *Svc) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	return s.repo.Get(ctx, eventID)
}

// Reset is the audited operator escape hatch for reprocessing an event
func (s *Svc) Reset(ctx context.Context, eventID string) error {
	ok, err := s.repo.Reset(ctx, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Newf(perr.ErrorCodeConflict, "ledger reset: %s missing or still pending", eventID)
	}
	s.log.Warn().Str("event_id", eventID).Msg("operator reset ledger entry")
	return nil
}

// CallsToday counts an author's successful calls for a command today (UTC)
func (s *Svc) CallsToday(ctx context.Context, author, command string) (int, error) {
	return s.repo.CallsToday(ctx, author, command)
}

var _ domain.Port = (*Svc)(nil)
