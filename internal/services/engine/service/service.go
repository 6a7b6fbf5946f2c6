// Package service implements the reaction engine
package service

import (
	"context"
	"sync"
	"time"

	"tipjar/internal/adapters/chain"
	"tipjar/internal/adapters/feed/hive"
	"tipjar/internal/core/command"
	"tipjar/internal/modkit"
	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"

	"tipjar/internal/services/engine/domain"
	ledgerdom "tipjar/internal/services/ledger/domain"
	"tipjar/internal/services/outcomes"
	rulesdom "tipjar/internal/services/rules/domain"
)

// ChainClient is the slice of the chain adapter the engine calls
type ChainClient interface {
	Transfer(ctx context.Context, req chain.TransferReq) (string, error)
	Vote(ctx context.Context, req chain.VoteReq) error
	BalanceOf(ctx context.Context, account, token string) (chain.Balance, error)
	AccountOf(ctx context.Context, name string) (chain.Account, error)
	VoteStateOf(ctx context.Context, voter, author, permlink string) (chain.VoteState, error)
}

// Source delivers comments at-least-once; the ledger dedupes
type Source interface {
	Run(ctx context.Context, emit func(ctx context.Context, c hive.Comment) error) error
}

// Config controls engine behavior
type Config struct {
	Concurrency    int           // max events in flight
	Budget         int           // attempts per leg
	BackoffBase    time.Duration // first retry delay
	BackoffCap     time.Duration // max retry delay
	AttemptTimeout time.Duration // per chain call
}

// Collaborators are the ports the engine drives
type Collaborators struct {
	Ledger   ledgerdom.Port
	Rules    rulesdom.SnapshotPort
	Chain    ChainClient
	Source   Source
	Outcomes outcomes.Publisher
}

// Svc is the reaction engine
type Svc struct {
	deps modkit.Deps
	cfg  Config
	col  Collaborators
	log  logger.Logger

	sem   chan struct{}
	wg    sync.WaitGroup
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs the engine
func New(deps modkit.Deps, cfg Config, col Collaborators) *Svc {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	return &Svc{
		deps:  deps,
		cfg:   cfg,
		col:   col,
		log:   *logger.Named("engine"),
		sem:   make(chan struct{}, cfg.Concurrency),
		sleep: sleepCtx,
	}
}

// Run consumes the source until ctx is canceled, then drains in-flight events.
// Pending ledger rows left behind by a hard kill resume on the next start
func (s *Svc) Run(ctx context.Context) error {
	err := s.col.Source.Run(ctx, s.ingest)
	s.wg.Wait()
	return err
}

// ingest is the per-comment entry point. Returning an error tells the feed to
// hold its cursor and replay the block, so it is reserved for ledger I/O
// failures where neither acting nor skipping was recorded
func (s *Svc) ingest(ctx context.Context, c hive.Comment) error {
	snap := s.col.Rules.Current()
	cmd, total, ok := command.Parse(c.Body, snap.EnabledCommands())
	if !ok {
		// a rule disabled mid flight must not orphan an event already in the
		// ledger; match against every configured command and proceed only
		// when the ledger knows the event
		cmd, total, ok = command.Parse(c.Body, snap.Commands())
		if !ok {
			return nil // parse miss, not an event
		}
		if _, gerr := s.col.Ledger.Get(ctx, c.EventID()); gerr != nil {
			if perr.CodeOf(gerr) == perr.ErrorCodeNotFound {
				return nil // fresh comment on a disabled rule, not an event
			}
			return perr.Wrap(gerr, perr.ErrorCodeDB, "engine resume check")
		}
	}

	ev := domain.TriggeringEvent{
		ID:             c.EventID(),
		Author:         c.Author,
		Recipient:      c.ParentAuthor,
		ParentPermlink: c.ParentPermlink,
		Body:           c.Body,
		BlockNum:       c.BlockNum,
		ObservedAt:     c.Timestamp,
	}

	adm, err := s.col.Ledger.Admit(ctx, ledgerdom.AdmitInput{
		EventID:   ev.ID,
		Author:    ev.Author,
		Recipient: ev.Recipient,
		Command:   cmd.Name,
	})
	if err != nil {
		// prefer under-acting: the block replays and admission is retried
		return perr.Wrap(err, perr.ErrorCodeDB, "engine admit")
	}

	switch adm.Verdict {
	case ledgerdom.VerdictAlreadyHandled, ledgerdom.VerdictInProgressElsewhere:
		s.log.Debug().Str("event_id", ev.ID).Str("verdict", string(adm.Verdict)).Msg("duplicate delivery skipped")
		return nil
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.wg.Add(1)
	go func() {
		defer func() {
			<-s.sem
			s.wg.Done()
		}()
		s.handle(logger.WithEvent(ctx, ev.ID), ev, cmd, total, snap, adm)
	}()
	return nil
}

// sleepCtx sleeps for d or until ctx is canceled
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ domain.RunnerPort = (*Svc)(nil)
