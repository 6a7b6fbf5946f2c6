package main

import (
	"context"
	"os/signal"
	"syscall"

	"tipjar/internal/modkit"
	"tipjar/internal/modkit/module"
	"tipjar/internal/modkit/repokit"
	"tipjar/internal/platform/config"
	"tipjar/internal/platform/logger"
	"tipjar/internal/platform/store"

	"tipjar/internal/adapters/chain"
	"tipjar/internal/adapters/feed/hive"

	enginemod "tipjar/internal/services/engine/module"
	enginesvc "tipjar/internal/services/engine/service"
	ledgermod "tipjar/internal/services/ledger/module"
	"tipjar/internal/services/outcomes"
	rulesmod "tipjar/internal/services/rules/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	hiveCfg := root.Prefix("SERVICE_HIVE_")
	walletCfg := root.Prefix("SERVICE_WALLET_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "tipjar-engine",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chCfg.MayBool("ENABLED", false),
			URL:     chCfg.MayString("DBURL", ""),
		},
		RDS: store.RedisConfig{
			Enabled:  rdCfg.MayBool("ENABLED", false),
			Addr:     rdCfg.MayString("ADDR", "localhost:6379"),
			DB:       rdCfg.MayInt("DB", 0),
			Password: rdCfg.MayString("PASSWORD", ""),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(context.Background(), st)

	deps := modkit.Deps{
		Cfg: root,
		Log: *l,
		PG:  st.PG,
		CH:  st.CH,
		RDS: st.RDS,
	}

	// Build dependency modules first
	rm := rulesmod.New(deps, rulesmod.Options{})
	lm := ledgermod.New(deps, ledgermod.Options{})
	rulesPorts := module.MustPortsOf[rulesmod.Ports](rm)
	ledgerPorts := module.MustPortsOf[ledgermod.Ports](lm)

	// Side-effect adapters
	wallet := chain.NewClient(chain.Options{
		BaseURL: walletCfg.MustString("URL"),
		Token:   walletCfg.MayString("TOKEN", ""),
	})
	feed := hive.New(hive.Config{
		NodeURL:      hiveCfg.MustString("NODE_URL"),
		PollInterval: hiveCfg.MayDuration("POLL_INTERVAL", 0),
		StartBlock:   uint32(hiveCfg.MayInt("START_BLOCK", 0)),
	}, rulesPorts.Cursor)

	pub := outcomes.New(deps)

	em := enginemod.New(deps, enginesvc.Collaborators{
		Ledger:   ledgerPorts.Ledger,
		Rules:    rulesPorts.Snapshots,
		Chain:    wallet,
		Source:   feed,
		Outcomes: pub,
	}, enginemod.Options{})

	module.Register(rm.Name(), rm.Ports())
	module.Register(lm.Name(), lm.Ports())
	module.Register(em.Name(), em.Ports())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load rules before the first block and keep them fresh
	if err := rulesPorts.Snapshots.Refresh(ctx); err != nil {
		l.Panic().Err(err).Msg("initial rules load failed")
	}
	go func() {
		if err := rulesPorts.Snapshots.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("rules refresher stopped")
		}
	}()

	ports := em.Ports().(enginemod.Ports)
	if err := ports.Runner.Run(ctx); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("engine stopped")
	}
	l.Info().Msg("engine drained, exiting")
}
