package domain

import "context"

// Port is the full ledger surface the engine and ops API depend on
type Port interface {
	// Admit atomically claims an event. The unique insert on event_id is the
	// engine's only synchronization point
	Admit(ctx context.Context, in AdmitInput) (Admission, error)

	// RecordAttempt bumps a leg's attempt counter and the attempt timestamp
	RecordAttempt(ctx context.Context, eventID string, leg Leg, errClass string) error

	// MarkLeg durably records a leg's terminal sub-outcome the moment it is
	// known, before anything else happens
	MarkLeg(ctx context.Context, eventID string, leg Leg, state LegState) error

	// Finalize irreversibly moves a pending entry to a terminal state
	Finalize(ctx context.Context, eventID string, state State, reason string, amount float64, weight int) error

	// Get returns the entry for inspection
	Get(ctx context.Context, eventID string) (Entry, error)

	// Reset returns a terminal entry to pending with zeroed counters.
	// Operator action; every call is audit logged
	Reset(ctx context.Context, eventID string) error

	// CallsToday counts an author's successful calls for a command today (UTC)
	CallsToday(ctx context.Context, author, command string) (int, error)
}
