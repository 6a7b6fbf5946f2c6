// Package module wires the reaction engine and exposes its runner port
package module

import (
	"time"

	"tipjar/internal/modkit"
	"tipjar/internal/modkit/httpkit"
	"tipjar/internal/platform/config"

	"tipjar/internal/services/engine/domain"
	"tipjar/internal/services/engine/service"
)

// Ports exposed by the engine module
type Ports struct {
	Runner domain.RunnerPort
}

// Options controls engine behavior. Values may also be read from env
type Options struct {
	Concurrency    int
	Budget         int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	AttemptTimeout time.Duration
}

// FromConfig reads options using ENGINE_ prefix
func FromConfig(cfg config.Conf) Options {
	e := cfg.Prefix("ENGINE_")
	return Options{
		Concurrency:    e.MayInt("CONCURRENCY", 8),
		Budget:         e.MayInt("ATTEMPT_BUDGET", 5),
		BackoffBase:    e.MayDuration("BACKOFF_BASE", 500*time.Millisecond),
		BackoffCap:     e.MayDuration("BACKOFF_CAP", 30*time.Second),
		AttemptTimeout: e.MayDuration("ATTEMPT_TIMEOUT", 10*time.Second),
	}
}

// Module defines the engine module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the engine module with its ports
func New(deps modkit.Deps, col service.Collaborators, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.Budget != 0 {
		opts.Budget = overrides.Budget
	}
	if overrides.BackoffBase != 0 {
		opts.BackoffBase = overrides.BackoffBase
	}
	if overrides.BackoffCap != 0 {
		opts.BackoffCap = overrides.BackoffCap
	}
	if overrides.AttemptTimeout != 0 {
		opts.AttemptTimeout = overrides.AttemptTimeout
	}

	svc := service.New(deps, service.Config{
		Concurrency:    opts.Concurrency,
		Budget:         opts.Budget,
		BackoffBase:    opts.BackoffBase,
		BackoffCap:     opts.BackoffCap,
		AttemptTimeout: opts.AttemptTimeout,
	}, col)

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "engine" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for the engine
func (m *Module) MountRoutes(_ httpkit.Router) {}
