package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tipjar/internal/adapters/chain"
	"tipjar/internal/core/command"
	"tipjar/internal/core/tipping"
	"tipjar/internal/platform/logger"

	"tipjar/internal/services/engine/domain"
	ledgerdom "tipjar/internal/services/ledger/domain"
	"tipjar/internal/services/outcomes"
)

// legResult is what one leg run produced
type legResult struct {
	state   ledgerdom.LegState
	aborted bool
}

// handle owns one admitted event end to end. It runs on its own goroutine and
// never returns an error; everything durable goes through the ledger. Leaving
// without finalizing keeps the entry pending so a later start resumes it
func (s *Svc) handle(
	ctx context.Context,
	ev domain.TriggeringEvent,
	cmd command.Command,
	total int,
	snap tipping.Snapshot,
	adm ledgerdom.Admission,
) {
	log := logger.C(ctx)
	entry := adm.Entry

	plan, settled := s.resolvePlan(ctx, ev, cmd, total, snap, entry)
	if settled {
		return
	}

	var tipRes, voteRes legResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); tipRes = s.runTipLeg(ctx, ev, plan, snap, entry) }()
	go func() { defer wg.Done(); voteRes = s.runVoteLeg(ctx, ev, plan, snap, entry) }()
	wg.Wait()

	if tipRes.aborted || voteRes.aborted {
		log.Info().Msg("event interrupted, stays pending")
		return
	}

	state := ledgerdom.StateDone
	reason := ""
	switch {
	case tipRes.state == ledgerdom.LegFailed:
		state, reason = ledgerdom.StateFailedPermanent, "tip_failed"
	case voteRes.state == ledgerdom.LegFailed && snap.VoteMandatory:
		state, reason = ledgerdom.StateFailedPermanent, "vote_failed"
	case voteRes.state == ledgerdom.LegFailed:
		reason = "vote_failed" // done anyway, vote is best effort here
	}

	amount, weight := 0.0, 0
	if tipRes.state == ledgerdom.LegDone {
		amount = plan.Amount
	}
	if voteRes.state == ledgerdom.LegDone {
		weight = plan.Weight
	}

	if err := s.col.Ledger.Finalize(ctx, ev.ID, state, reason, amount, weight); err != nil {
		log.Error().Err(err).Msg("finalize failed, entry stays pending")
		return
	}
	s.col.Outcomes.Publish(ctx, outcomes.Record{
		EventID:   ev.ID,
		Outcome:   string(state),
		Reason:    reason,
		Author:    ev.Author,
		Recipient: ev.Recipient,
		Command:   plan.Command,
		Amount:    amount,
		Weight:    weight,
		At:        time.Now().UTC(),
	})
	log.Info().
		Str("state", string(state)).
		Float64("amount", amount).
		Int("weight", weight).
		Msg("event finalized")
}

// resolvePlan decides what the event deserves. settled=true means the event
// reached a terminal state (or must wait) and the legs should not run.
//
// A resumed event with a landed leg is past policy; re-running eligibility
// against today's facts could reject an event whose tip already went out, so
// the plan is rebuilt straight from the configured level instead
func (s *Svc) resolvePlan(
	ctx context.Context,
	ev domain.TriggeringEvent,
	cmd command.Command,
	total int,
	snap tipping.Snapshot,
	entry ledgerdom.Entry,
) (tipping.Plan, bool) {
	log := logger.C(ctx)

	committed := entry.TipState == ledgerdom.LegDone || entry.VoteState == ledgerdom.LegDone
	if committed {
		lvl, ok := snap.Levels[cmd.Name]
		if !ok || !lvl.Enabled {
			// effects already landed and the rule is gone; settle what exists
			// rather than spend against a dead rule
			s.settleOrphan(ctx, ev, entry)
			return tipping.Plan{}, true
		}
		return tipping.Plan{
			Command:      lvl.Command,
			Amount:       lvl.Amount,
			CallerAmount: lvl.CallerAmount,
			Weight:       lvl.Weight,
			Recipient:    ev.Recipient,
		}, false
	}

	caller, err := s.gatherCaller(ctx, ev, cmd.Name, total, snap)
	if err != nil {
		// chain or ledger lookup failed; nothing was decided, resume later
		log.Warn().Err(err).Msg("caller facts unavailable, entry stays pending")
		return tipping.Plan{}, true
	}

	plan, reason, ok := tipping.Resolve(cmd.Name, caller, snap)
	if !ok {
		if ferr := s.col.Ledger.Finalize(ctx, ev.ID, ledgerdom.StateSkippedByPolicy, string(reason), 0, 0); ferr != nil {
			log.Error().Err(ferr).Msg("skip finalize failed, entry stays pending")
			return tipping.Plan{}, true
		}
		s.col.Outcomes.Publish(ctx, outcomes.Record{
			EventID:   ev.ID,
			Outcome:   string(ledgerdom.StateSkippedByPolicy),
			Reason:    string(reason),
			Author:    ev.Author,
			Recipient: ev.Recipient,
			Command:   cmd.Name,
			At:        time.Now().UTC(),
		})
		log.Info().Str("reason", string(reason)).Msg("event skipped by policy")
		return tipping.Plan{}, true
	}
	return plan, false
}

// gatherCaller collects the live facts eligibility needs
func (s *Svc) gatherCaller(
	ctx context.Context,
	ev domain.TriggeringEvent,
	cmdName string,
	total int,
	snap tipping.Snapshot,
) (tipping.Caller, error) {
	lctx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	acct, err := s.col.Chain.AccountOf(lctx, ev.Author)
	if err != nil {
		return tipping.Caller{}, err
	}
	bal, err := s.col.Chain.BalanceOf(lctx, ev.Author, snap.TokenSymbol)
	if err != nil {
		return tipping.Caller{}, err
	}
	calls, err := s.col.Ledger.CallsToday(lctx, ev.Author, cmdName)
	if err != nil {
		return tipping.Caller{}, err
	}

	balance := bal.Liquid
	if snap.RequireStake {
		balance = bal.Staked
	}
	age := int(time.Since(acct.CreatedAt).Hours() / 24)
	return tipping.Caller{
		Author:         ev.Author,
		Recipient:      ev.Recipient,
		AccountAgeDays: age,
		Balance:        balance,
		CallsToday:     calls,
		CommandCount:   total,
	}, nil
}

// runTipLeg sends the transfer once, retried within budget. A leg already
// terminal from a previous run is honored without touching the chain
func (s *Svc) runTipLeg(
	ctx context.Context,
	ev domain.TriggeringEvent,
	plan tipping.Plan,
	snap tipping.Snapshot,
	entry ledgerdom.Entry,
) legResult {
	log := logger.C(ctx)

	switch entry.TipState {
	case ledgerdom.LegDone, ledgerdom.LegSkipped, ledgerdom.LegFailed:
		return legResult{state: entry.TipState}
	}

	if !snap.TransfersEnabled {
		return s.markLeg(ctx, ev.ID, ledgerdom.LegTip, ledgerdom.LegSkipped)
	}

	memo := fmt.Sprintf("!%s from @%s", plan.Command, ev.Author)
	ex := s.executorFor(ctx, ev.ID, ledgerdom.LegTip)
	kind, err := ex.run(ctx, entry.TipAttempts, func(actx context.Context) error {
		_, terr := s.col.Chain.Transfer(actx, chain.TransferReq{
			From:   snap.BotAccount,
			To:     plan.Recipient,
			Token:  snap.TokenSymbol,
			Amount: plan.Amount,
			Memo:   memo,
		})
		return terr
	})

	switch kind {
	case execSuccess:
		res := s.markLeg(ctx, ev.ID, ledgerdom.LegTip, ledgerdom.LegDone)
		if res.aborted {
			// the transfer landed but the mark did not; a resume would retry
			// the transfer, so this needs eyes
			log.Error().Msg("transfer landed but tip mark failed, manual check required")
			return res
		}
		s.sideTip(ctx, ev, plan, snap)
		return res
	case execAborted:
		return legResult{state: ledgerdom.LegPending, aborted: true}
	default:
		log.Warn().Err(err).Msg("tip leg failed permanently")
		return s.markLeg(ctx, ev.ID, ledgerdom.LegTip, ledgerdom.LegFailed)
	}
}

// sideTip returns a slice of the payout to the caller. Single attempt, best
// effort; a miss here never changes the event outcome
func (s *Svc) sideTip(ctx context.Context, ev domain.TriggeringEvent, plan tipping.Plan, snap tipping.Snapshot) {
	if plan.CallerAmount <= 0 {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AttemptTimeout)
	defer cancel()
	_, err := s.col.Chain.Transfer(actx, chain.TransferReq{
		From:   snap.BotAccount,
		To:     ev.Author,
		Token:  snap.TokenSymbol,
		Amount: plan.CallerAmount,
		Memo:   fmt.Sprintf("thanks for spreading the !%s love", plan.Command),
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("caller side tip missed")
	}
}

// runVoteLeg casts the weighted vote. Votes are idempotent upstream, so a
// pre-check that finds an equal or stronger vote counts as done
func (s *Svc) runVoteLeg(
	ctx context.Context,
	ev domain.TriggeringEvent,
	plan tipping.Plan,
	snap tipping.Snapshot,
	entry ledgerdom.Entry,
) legResult {
	log := logger.C(ctx)

	switch entry.VoteState {
	case ledgerdom.LegDone, ledgerdom.LegSkipped, ledgerdom.LegFailed:
		return legResult{state: entry.VoteState}
	}

	if !snap.VotesEnabled {
		return s.markLeg(ctx, ev.ID, ledgerdom.LegVote, ledgerdom.LegSkipped)
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	vs, err := s.col.Chain.VoteStateOf(pctx, snap.BotAccount, ev.Recipient, ev.ParentPermlink)
	cancel()
	if err == nil && vs.Voted && vs.Weight >= plan.Weight {
		return s.markLeg(ctx, ev.ID, ledgerdom.LegVote, ledgerdom.LegDone)
	}
	// a failed pre-check is fine, the vote call itself decides

	ex := s.executorFor(ctx, ev.ID, ledgerdom.LegVote)
	kind, err := ex.run(ctx, entry.VoteAttempts, func(actx context.Context) error {
		return s.col.Chain.Vote(actx, chain.VoteReq{
			Voter:    snap.BotAccount,
			Author:   ev.Recipient,
			Permlink: ev.ParentPermlink,
			Weight:   plan.Weight,
		})
	})

	switch kind {
	case execSuccess:
		return s.markLeg(ctx, ev.ID, ledgerdom.LegVote, ledgerdom.LegDone)
	case execAborted:
		return legResult{state: ledgerdom.LegPending, aborted: true}
	default:
		log.Warn().Err(err).Msg("vote leg failed permanently")
		return s.markLeg(ctx, ev.ID, ledgerdom.LegVote, ledgerdom.LegFailed)
	}
}

// executorFor builds the retry driver for one leg of one event
func (s *Svc) executorFor(ctx context.Context, eventID string, leg ledgerdom.Leg) executor {
	return executor{
		name:    string(leg),
		budget:  s.cfg.Budget,
		base:    s.cfg.BackoffBase,
		cap:     s.cfg.BackoffCap,
		timeout: s.cfg.AttemptTimeout,
		sleep:   s.sleep,
		record: func(rctx context.Context, errClass string) {
			if err := s.col.Ledger.RecordAttempt(rctx, eventID, leg, errClass); err != nil {
				logger.C(ctx).Warn().Err(err).Msg("attempt record failed")
			}
		},
		log: *logger.C(ctx),
	}
}

// markLeg records a leg's terminal state; a write failure aborts the event
func (s *Svc) markLeg(ctx context.Context, eventID string, leg ledgerdom.Leg, state ledgerdom.LegState) legResult {
	if err := s.col.Ledger.MarkLeg(ctx, eventID, leg, state); err != nil {
		logger.C(ctx).Error().Err(err).Str("leg", string(leg)).Msg("leg mark failed")
		return legResult{state: ledgerdom.LegPending, aborted: true}
	}
	return legResult{state: state}
}

// settleOrphan closes a resumed event whose rule vanished mid flight. Landed
// effects stand; pending legs are skipped
func (s *Svc) settleOrphan(ctx context.Context, ev domain.TriggeringEvent, entry ledgerdom.Entry) {
	log := logger.C(ctx)

	if entry.TipState == ledgerdom.LegPending || entry.TipState == "" {
		if res := s.markLeg(ctx, ev.ID, ledgerdom.LegTip, ledgerdom.LegSkipped); res.aborted {
			return
		}
	}
	if entry.VoteState == ledgerdom.LegPending || entry.VoteState == "" {
		if res := s.markLeg(ctx, ev.ID, ledgerdom.LegVote, ledgerdom.LegSkipped); res.aborted {
			return
		}
	}
	if err := s.col.Ledger.Finalize(ctx, ev.ID, ledgerdom.StateDone, "rule_removed", 0, 0); err != nil {
		log.Error().Err(err).Msg("orphan finalize failed")
		return
	}
	s.col.Outcomes.Publish(ctx, outcomes.Record{
		EventID:   ev.ID,
		Outcome:   string(ledgerdom.StateDone),
		Reason:    "rule_removed",
		Author:    ev.Author,
		Recipient: ev.Recipient,
		Command:   entry.Command,
		At:        time.Now().UTC(),
	})
}
