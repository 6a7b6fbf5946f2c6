// Package repo provides the ledger repository implementation
package repo

import (
	"context"
	"errors"
	"time"

	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/store"

	"tipjar/internal/modkit/repokit"
	"tipjar/internal/services/ledger/domain"
)

// Repo defines the ledger repository contract
type Repo interface {
	// Insert attempts the unique pending insert; reports whether a row was created
	Insert(ctx context.Context, in domain.AdmitInput) (bool, error)

	// Claim reclaims a stale pending row whose last attempt predates cutoff
	Claim(ctx context.Context, eventID string, cutoff time.Time) (bool, error)

	Get(ctx context.Context, eventID string) (domain.Entry, error)
	RecordAttempt(ctx context.Context, eventID string, leg domain.Leg, errClass string) error
	MarkLeg(ctx context.Context, eventID string, leg domain.Leg, state domain.LegState) error
	Finalize(ctx context.Context, eventID string, state domain.State, reason string, amount float64, weight int) error
	Reset(ctx context.Context, eventID string) (bool, error)
	CallsToday(ctx context.Context, author, command string) (int, error)
}

type (
	// PG is a Postgres ledger repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres ledger repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// Insert is the idempotency point: exactly one caller ever sees created=true
func (r *queries) Insert(ctx context.Context, in domain.AdmitInput) (bool, error) {
	const sql = `
		INSERT INTO tip_ledger
			(event_id, author, recipient, command, state, tip_state, vote_state,
			 tip_attempts, vote_attempts, created_at, last_attempt_at)
		VALUES ($1, $2, $3, $4, 'pending', 'pending', 'pending', 0, 0, NOW(), NOW())
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, sql, in.EventID, in.Author, in.Recipient, in.Command)
	if err != nil {
		return false, perr.FromPostgres(err, "ledger insert")
	}
	return tag.RowsAffected() == 1, nil
}

// Claim wins the race to resume a stale pending row
func (r *queries) Claim(ctx context.Context, eventID string, cutoff time.Time) (bool, error) {
	const sql = `
		UPDATE tip_ledger
		SET last_attempt_at = NOW()
		WHERE event_id = $1 AND state = 'pending' AND last_attempt_at < $2
	`
	tag, err := r.q.Exec(ctx, sql, eventID, cutoff)
	if err != nil {
		return false, perr.FromPostgres(err, "ledger claim")
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the entry for an event id
func (r *queries) Get(ctx context.Context, eventID string) (domain.Entry, error) {
	const sql = `
		SELECT event_id, author, recipient, command, state, tip_state, vote_state,
		       tip_attempts, vote_attempts, last_attempt_at,
		       COALESCE(last_error_class, ''), COALESCE(reason, ''),
		       amount, weight, created_at, finalized_at
		FROM tip_ledger
		WHERE event_id = $1
	`
	e, err := store.One(ctx, r.q, scanEntry, sql, eventID)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return domain.Entry{}, perr.ErrNotFound
		}
		return domain.Entry{}, perr.FromPostgres(err, "ledger get")
	}
	return e, nil
}

func scanEntry(row store.Row) (domain.Entry, error) {
	var e domain.Entry
	err := row.Scan(
		&e.EventID, &e.Author, &e.Recipient, &e.Command, &e.State, &e.TipState, &e.VoteState,
		&e.TipAttempts, &e.VoteAttempts, &e.LastAttemptAt,
		&e.LastErrorClass, &e.Reason,
		&e.Amount, &e.Weight, &e.CreatedAt, &e.FinalizedAt,
	)
	return e, err
}

// RecordAttempt bumps the leg counter and timestamp on every try
func (r *queries) RecordAttempt(ctx context.Context, eventID string, leg domain.Leg, errClass string) error {
	col, err := attemptCol(leg)
	if err != nil {
		return err
	}
	sql := `
		UPDATE tip_ledger
		SET ` + col + ` = ` + col + ` + 1,
		    last_attempt_at = NOW(),
		    last_error_class = NULLIF($2, '')
		WHERE event_id = $1
	`
	_, err = r.q.Exec(ctx, sql, eventID, errClass)
	return perr.FromPostgres(err, "ledger record attempt")
}

// MarkLeg durably records a leg terminal sub-outcome while the row is pending
func (r *queries) MarkLeg(ctx context.Context, eventID string, leg domain.Leg, state domain.LegState) error {
	col, err := legCol(leg)
	if err != nil {
		return err
	}
	sql := `
		UPDATE tip_ledger
		SET ` + col + ` = $2
		WHERE event_id = $1 AND state = 'pending'
	`
	tag, err := r.q.Exec(ctx, sql, eventID, string(state))
	if err != nil {
		return perr.FromPostgres(err, "ledger mark leg")
	}
	if tag.RowsAffected() == 0 {
		return perr.Newf(perr.ErrorCodeConflict, "ledger mark leg: %s not pending", eventID)
	}
	return nil
}

// Finalize transitions pending -> terminal exactly once
func (r *queries) Finalize(
	ctx context.Context,
	eventID string,
	state domain.State,
	reason string,
	amount float64,
	weight int,
) error {
	const sql = `
		UPDATE tip_ledger
		SET state = $2, reason = NULLIF($3, ''), amount = $4, weight = $5, finalized_at = NOW()
		WHERE event_id = $1 AND state = 'pending'
	`
	tag, err := r.q.Exec(ctx, sql, eventID, string(state), reason, amount, weight)
	if err != nil {
		return perr.FromPostgres(err, "ledger finalize")
	}
	if tag.RowsAffected() == 0 {
		return perr.Newf(perr.ErrorCodeConflict, "ledger finalize: %s not pending", eventID)
	}
	return nil
}

// Reset returns a terminal entry to pending with zeroed counters.
// last_attempt_at is pushed to the epoch so the next delivery resumes it
func (r *queries) Reset(ctx context.Context, eventID string) (bool, error) {
	const sql = `
		UPDATE tip_ledger
		SET state = 'pending', tip_state = 'pending', vote_state = 'pending',
		    tip_attempts = 0, vote_attempts = 0,
		    last_error_class = NULL, reason = NULL,
		    finalized_at = NULL, last_attempt_at = to_timestamp(0)
		WHERE event_id = $1 AND state <> 'pending'
	`
	tag, err := r.q.Exec(ctx, sql, eventID)
	if err != nil {
		return false, perr.FromPostgres(err, "ledger reset")
	}
	return tag.RowsAffected() == 1, nil
}

// CallsToday counts done entries by author+command since UTC midnight
func (r *queries) CallsToday(ctx context.Context, author, command string) (int, error) {
	const sql = `
		SELECT COUNT(*)
		FROM tip_ledger
		WHERE author = $1 AND command = $2 AND state = 'done'
		  AND finalized_at >= date_trunc('day', NOW() AT TIME ZONE 'utc')
	`
	n, err := store.Scalar[int](ctx, r.q, sql, author, command)
	if err != nil {
		return 0, perr.FromPostgres(err, "ledger calls today")
	}
	return n, nil
}

func attemptCol(leg domain.Leg) (string, error) {
	switch leg {
	case domain.LegTip:
		return "tip_attempts", nil
	case domain.LegVote:
		return "vote_attempts", nil
	}
	return "", perr.Newf(perr.ErrorCodeInvalidArgument, "unknown leg %q", leg)
}

func legCol(leg domain.Leg) (string, error) {
	switch leg {
	case domain.LegTip:
		return "tip_state", nil
	case domain.LegVote:
		return "vote_state", nil
	}
	return "", perr.Newf(perr.ErrorCodeInvalidArgument, "unknown leg %q", leg)
}
