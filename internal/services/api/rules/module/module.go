// Package module wires the rules inspection endpoints into the API
package module

import (
	"net/http"

	modkit "tipjar/internal/modkit"
	"tipjar/internal/modkit/httpkit"
	str "tipjar/internal/platform/strings"

	rhttp "tipjar/internal/services/api/rules/http"
	rdom "tipjar/internal/services/rules/domain"
)

// Ports declares the injected rules ports this API module fronts
type Ports struct {
	Levels    rdom.LevelsPort
	Snapshots rdom.SnapshotPort
}

// Module implements the rules API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the rules API module. The rules worker ports must be
// injected via modkit.WithPorts(Ports{...})
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("rules"),
		modkit.WithPrefix("/rules"),
	}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok || ports.Levels == nil || ports.Snapshots == nil {
		panic("rules api module requires injected rules ports")
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     b.Ports,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		rhttp.Register(r, rhttp.Deps{
			Levels:    ports.Levels,
			Snapshots: ports.Snapshots,
		})
		if external != nil {
			external(r)
		}
	}

	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "rules") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares implements the modkit.Module interface
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return m.ports }
