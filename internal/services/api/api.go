// Package api provides the HTTP API for the application
package api

import (
	"tipjar/internal/platform/config"
	"tipjar/internal/platform/logger"
	phttp "tipjar/internal/platform/net/http"
	"tipjar/internal/platform/store"

	"tipjar/internal/modkit"
	"tipjar/internal/modkit/httpkit"
	"tipjar/internal/modkit/module"
	"tipjar/internal/modkit/swaggerkit"

	apiledger "tipjar/internal/services/api/ledger/module"
	metamod "tipjar/internal/services/api/meta/module"
	apirules "tipjar/internal/services/api/rules/module"

	// Worker modules own the ports the API fronts
	workerledger "tipjar/internal/services/ledger/module"
	workerrules "tipjar/internal/services/rules/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
		RDS: opt.Store.RDS,
	}

	// Construct the worker modules first and extract the ports the API fronts
	workerLedger := workerledger.New(deps, workerledger.Options{})
	ledgerPorts := workerLedger.Ports().(workerledger.Ports)

	workerRules := workerrules.New(deps, workerrules.Options{})
	rulesPorts := workerRules.Ports().(workerrules.Ports)

	// mutating endpoints sit behind a static operator token when one is set
	guard := httpkit.BearerAuth(opt.Config.MayString("TOKEN", ""))

	mods := []module.Module{
		metamod.New(deps),
		apiledger.New(deps,
			modkit.WithPorts(apiledger.Ports{
				Ledger: ledgerPorts.Ledger,
			}),
			modkit.WithMiddlewares(guard),
		),
		apirules.New(deps,
			modkit.WithPorts(apirules.Ports{
				Levels:    rulesPorts.Levels,
				Snapshots: rulesPorts.Snapshots,
			}),
			modkit.WithMiddlewares(guard),
		),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
