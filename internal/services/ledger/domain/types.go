// Package domain defines ledger types and ports
package domain

import "time"

// State is the lifecycle state of a ledger entry
type State string

// Entry lifecycle states. done is never re-entered
const (
	StatePending         State = "pending"
	StateDone            State = "done"
	StateFailedPermanent State = "failed-permanent"
	StateSkippedByPolicy State = "skipped-by-policy"
)

// Terminal reports whether s admits no further transitions
func (s State) Terminal() bool { return s != StatePending && s != "" }

// Leg names one of the two side effects of an event
type Leg string

// The two executor legs
const (
	LegTip  Leg = "tip"
	LegVote Leg = "vote"
)

// LegState is the durable sub-outcome of a single leg
type LegState string

// Leg states. done/failed/skipped are terminal for the leg
const (
	LegPending LegState = "pending"
	LegDone    LegState = "done"
	LegFailed  LegState = "failed"
	LegSkipped LegState = "skipped"
)

// Verdict is the admission decision for an observed event
type Verdict string

// Admission verdicts
const (
	// VerdictAdmitted means a fresh pending row was inserted; caller owns the event
	VerdictAdmitted Verdict = "admitted"
	// VerdictResumed means a stale pending row was reclaimed after a crash
	VerdictResumed Verdict = "resumed"
	// VerdictAlreadyHandled means a terminal row exists; skip silently
	VerdictAlreadyHandled Verdict = "already-handled"
	// VerdictInProgressElsewhere means a live pending row exists; do not touch
	VerdictInProgressElsewhere Verdict = "in-progress-elsewhere"
)

// Entry is one ledger row, the single source of truth for an event
type Entry struct {
	EventID        string     `json:"event_id"`
	Author         string     `json:"author"`
	Recipient      string     `json:"recipient"`
	Command        string     `json:"command"`
	State          State      `json:"state"`
	TipState       LegState   `json:"tip_state"`
	VoteState      LegState   `json:"vote_state"`
	TipAttempts    int        `json:"tip_attempts"`
	VoteAttempts   int        `json:"vote_attempts"`
	LastAttemptAt  time.Time  `json:"last_attempt_at"`
	LastErrorClass string     `json:"last_error_class,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Amount         float64    `json:"amount"`
	Weight         int        `json:"weight"`
	CreatedAt      time.Time  `json:"created_at"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

// Admission pairs the verdict with the row it refers to
type Admission struct {
	Verdict Verdict
	Entry   Entry
}

// AdmitInput identifies the event being admitted
type AdmitInput struct {
	EventID   string
	Author    string
	Recipient string
	Command   string
}
