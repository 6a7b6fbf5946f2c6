// Package outcomes publishes terminal event outcomes for observers
package outcomes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tipjar/internal/modkit"
	"tipjar/internal/platform/logger"
	"tipjar/internal/platform/store"
)

// Stream is the redis stream terminal outcomes are appended to
const Stream = "tipjar:outcomes"

// Table is the clickhouse archive table
const Table = "tip_outcomes"

// Record is one terminal outcome, exactly one per finalized event
type Record struct {
	EventID   string
	Outcome   string // done | failed-permanent | skipped-by-policy
	Reason    string
	Author    string
	Recipient string
	Command   string
	Amount    float64
	Weight    int
	At        time.Time
}

// Publisher is the outcome sink surface the engine depends on
type Publisher interface {
	Publish(ctx context.Context, rec Record)
}

// Svc fans outcomes out to redis and clickhouse, both best effort.
// Sink failures are logged and never propagate to the caller; the ledger is
// the source of truth and outcome delivery must not affect it
type Svc struct {
	rds store.Redis
	ch  store.Clickhouse
	log logger.Logger
}

// New constructs the outcomes publisher. Either sink may be nil
func New(deps modkit.Deps) *Svc {
	return &Svc{
		rds: deps.RDS,
		ch:  deps.CH,
		log: *logger.Named("outcomes"),
	}
}

// Publish appends the record to the stream and the archive, fire and forget
func (s *Svc) Publish(ctx context.Context, rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	id := uuid.NewString()

	if s.rds != nil {
		_, err := s.rds.XAdd(ctx, Stream, map[string]any{
			"id":        id,
			"event_id":  rec.EventID,
			"outcome":   rec.Outcome,
			"reason":    rec.Reason,
			"author":    rec.Author,
			"recipient": rec.Recipient,
			"command":   rec.Command,
			"amount":    rec.Amount,
			"weight":    rec.Weight,
			"at":        rec.At.Format(time.RFC3339Nano),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", rec.EventID).Msg("outcome stream publish failed")
		}
	}

	if s.ch != nil {
		row := [][]any{{
			id, rec.EventID, rec.Outcome, rec.Reason,
			rec.Author, rec.Recipient, rec.Command,
			rec.Amount, int32(rec.Weight), rec.At,
		}}
		if err := s.ch.Insert(ctx, Table, row); err != nil {
			s.log.Warn().Err(err).Str("event_id", rec.EventID).Msg("outcome archive insert failed")
		}
	}
}

var _ Publisher = (*Svc)(nil)
