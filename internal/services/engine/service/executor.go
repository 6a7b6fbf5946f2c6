package service

import (
	"context"
	stderrs "errors"
	"time"

	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"
)

// outcomeKind is the terminal classification of one executor run
type outcomeKind int

const (
	// execSuccess means the side effect is durably on chain
	execSuccess outcomeKind = iota
	// execPermanent means no further attempt may ever be made
	execPermanent
	// execAborted means shutdown interrupted the run; the leg stays pending
	execAborted
)

// errClass values persisted to the ledger per attempt
const (
	classRetryable = "retryable"
	classPermanent = "permanent"
)

// executor drives one side-effect leg with bounded retry.
// Attempt numbering continues from prior runs so a resumed event cannot
// exceed the budget across crashes
type executor struct {
	name    string
	budget  int
	base    time.Duration
	cap     time.Duration
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	record  func(ctx context.Context, errClass string)
	log     logger.Logger
}

// run invokes call until success, a permanent failure, budget exhaustion or
// shutdown. Exactly one attempt is in flight at a time; each attempt gets its
// own timeout and survives engine shutdown (finish or time out, never cut)
func (e executor) run(ctx context.Context, used int, call func(ctx context.Context) error) (outcomeKind, error) {
	if used >= e.budget {
		return execPermanent, perr.Newf(perr.ErrorCodeUnknown, "%s budget exhausted before run", e.name)
	}

	for attempt := used; attempt < e.budget; attempt++ {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		err := call(actx)
		cancel()

		if err == nil {
			e.record(ctx, "")
			return execSuccess, nil
		}

		retryable := perr.IsRetryableChain(err)
		if !retryable && stderrs.Is(err, context.DeadlineExceeded) {
			// the attempt ctx is detached from the caller, so a deadline here
			// can only be the per-attempt timeout firing
			retryable = true
		}
		if retryable {
			e.record(ctx, classRetryable)
		} else {
			e.record(ctx, classPermanent)
		}
		e.log.Warn().
			Err(err).
			Str("leg", e.name).
			Int("attempt", attempt+1).
			Int("budget", e.budget).
			Bool("retryable", retryable).
			Msg("attempt failed")

		if !retryable {
			return execPermanent, err
		}
		if attempt+1 >= e.budget {
			return execPermanent, perr.Wrapf(err, perr.ErrorCodeUnavailable,
				"%s failed after %d attempts", e.name, e.budget)
		}
		if serr := e.sleep(ctx, backoffFor(attempt, e.base, e.cap)); serr != nil {
			return execAborted, serr
		}
	}
	// unreachable; the loop exits through one of the returns above
	return execPermanent, perr.Newf(perr.ErrorCodeUnknown, "%s fell out of retry loop", e.name)
}

// backoffFor is exponential from base with a hard cap
func backoffFor(attempt int, base, cap time.Duration) time.Duration {
	if attempt > 20 {
		attempt = 20 // avoid shift overflow; cap applies anyway
	}
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
