// Package module wires the ledger service and exposes its ports
package module

import (
	"time"

	"tipjar/internal/modkit"
	"tipjar/internal/modkit/httpkit"
	"tipjar/internal/platform/config"

	"tipjar/internal/services/ledger/domain"
	"tipjar/internal/services/ledger/service"
)

// Ports exposed by the ledger module
type Ports struct {
	Ledger domain.Port
}

// Options controls ledger behavior. Values may also be read from env
type Options struct {
	RecoveryWindow time.Duration
}

// FromConfig reads options using LEDGER_ prefix
func FromConfig(cfg config.Conf) Options {
	l := cfg.Prefix("LEDGER_")
	return Options{
		RecoveryWindow: l.MayDuration("RECOVERY_WINDOW", 10*time.Minute),
	}
}

// Module defines the ledger module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the ledger module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.RecoveryWindow != 0 {
		opts.RecoveryWindow = overrides.RecoveryWindow
	}

	svc := service.New(deps, service.Config{RecoveryWindow: opts.RecoveryWindow})

	m := &Module{deps: deps}
	m.ports = Ports{Ledger: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "ledger" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for ledger (the ops API fronts it)
func (m *Module) MountRoutes(_ httpkit.Router) {}
