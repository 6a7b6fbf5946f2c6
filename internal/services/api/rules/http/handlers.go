// Package http provides http transport for bot rules inspection
package http

import (
	stdhttp "net/http"

	"tipjar/internal/modkit/httpkit"

	"tipjar/internal/services/rules/domain"
)

// Deps are the handler dependencies
type Deps struct {
	Levels    domain.LevelsPort
	Snapshots domain.SnapshotPort
}

// Register mounts rules endpoints on the given router
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Get(r, "/levels", h.levels)
	httpkit.Post(r, "/refresh", h.refresh)
}

type handlers struct{ deps Deps }

// RefreshResponse reports the snapshot after a forced reload
type RefreshResponse struct {
	BotAccount string   `json:"bot_account"`
	Commands   []string `json:"commands"`
}

// swagger:route GET /rules/levels Rules rulesLevels
// @Summary List configured tipping levels
// @Tags Rules
// @Produce json
// @Success 200 {array} domain.Level ok
// @Router /rules/levels [get]
func (h *handlers) levels(r *stdhttp.Request) (any, error) {
	return h.deps.Levels.Levels(r.Context())
}

// swagger:route POST /rules/refresh Rules rulesRefresh
// @Summary Force a rules snapshot reload from the store
// @Tags Rules
// @Produce json
// @Success 200 type RefreshResponse ok
// @Router /rules/refresh [post]
func (h *handlers) refresh(r *stdhttp.Request) (any, error) {
	if err := h.deps.Snapshots.Refresh(r.Context()); err != nil {
		return nil, err
	}
	snap := h.deps.Snapshots.Current()
	return RefreshResponse{
		BotAccount: snap.BotAccount,
		Commands:   snap.EnabledCommands(),
	}, nil
}
