// Package module wires the rules service and exposes its ports
package module

import (
	"time"

	"tipjar/internal/modkit"
	"tipjar/internal/modkit/httpkit"
	"tipjar/internal/platform/config"

	"tipjar/internal/services/rules/domain"
	"tipjar/internal/services/rules/service"
)

// Ports exposed by the rules module
type Ports struct {
	Snapshots domain.SnapshotPort
	Cursor    domain.CursorPort
	Levels    domain.LevelsPort
}

// Options controls rules behavior. Values may also be read from env
type Options struct {
	RefreshEvery time.Duration
}

// FromConfig reads options using RULES_ prefix
func FromConfig(cfg config.Conf) Options {
	r := cfg.Prefix("RULES_")
	return Options{
		RefreshEvery: r.MayDuration("REFRESH_EVERY", time.Minute),
	}
}

// Module defines the rules module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the rules module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.RefreshEvery != 0 {
		opts.RefreshEvery = overrides.RefreshEvery
	}

	svc := service.New(deps, service.Config{RefreshEvery: opts.RefreshEvery})

	m := &Module{deps: deps}
	m.ports = Ports{
		Snapshots: svc,
		Cursor:    svc,
		Levels:    svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "rules" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for rules (the ops API exposes levels)
func (m *Module) MountRoutes(_ httpkit.Router) {}
