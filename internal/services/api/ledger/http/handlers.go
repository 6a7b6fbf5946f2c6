// Package http provides http transport for ledger inspection and ops
package http

import (
	stdhttp "net/http"

	"tipjar/internal/modkit/httpkit"
	perr "tipjar/internal/platform/errors"

	"tipjar/internal/services/ledger/domain"
)

// Register mounts ledger endpoints on the given router
func Register(r httpkit.Router, port domain.Port) {
	h := &handlers{port: port}
	httpkit.PostJSON[EntryInput](r, "/entry", h.entry)
	httpkit.PostJSON[ResetInput](r, "/reset", h.reset)
	httpkit.PostJSON[CallsInput](r, "/calls-today", h.callsToday)
}

type handlers struct{ port domain.Port }

// EntryInput identifies one ledger entry
// swagger:model
type EntryInput struct {
	EventID string `json:"event_id" example:"alice/re-some-post"`
}

// ResetInput identifies the entry to return to pending
// swagger:model
type ResetInput struct {
	EventID string `json:"event_id" example:"alice/re-some-post"`
}

// CallsInput scopes a daily call count
// swagger:model
type CallsInput struct {
	Author  string `json:"author"  example:"alice"`
	Command string `json:"command" example:"HUG"`
}

// CallsResponse is the daily call count payload
type CallsResponse struct {
	Author  string `json:"author"`
	Command string `json:"command"`
	Calls   int    `json:"calls"`
}

// swagger:route POST /ledger/entry Ledger ledgerEntry
// @Summary Fetch one ledger entry by event id
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body EntryInput true "Event"
// @Success 200 type domain.Entry ok
// @Router /ledger/entry [post]
func (h *handlers) entry(r *stdhttp.Request, in EntryInput) (any, error) {
	if in.EventID == "" {
		return nil, perr.Newf(perr.ErrorCodeValidation, "event_id is required")
	}
	return h.port.Get(r.Context(), in.EventID)
}

// swagger:route POST /ledger/reset Ledger ledgerReset
// @Summary Return a terminal entry to pending for reprocessing
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body ResetInput true "Event"
// @Success 200 type domain.Entry ok
// @Router /ledger/reset [post]
func (h *handlers) reset(r *stdhttp.Request, in ResetInput) (any, error) {
	if in.EventID == "" {
		return nil, perr.Newf(perr.ErrorCodeValidation, "event_id is required")
	}
	if err := h.port.Reset(r.Context(), in.EventID); err != nil {
		return nil, err
	}
	return h.port.Get(r.Context(), in.EventID)
}

// swagger:route POST /ledger/calls-today Ledger ledgerCallsToday
// @Summary Count an author's successful calls for a command today
// @Tags Ledger
// @Accept json
// @Produce json
// @Param payload body CallsInput true "Scope"
// @Success 200 type CallsResponse ok
// @Router /ledger/calls-today [post]
func (h *handlers) callsToday(r *stdhttp.Request, in CallsInput) (any, error) {
	if in.Author == "" || in.Command == "" {
		return nil, perr.Newf(perr.ErrorCodeValidation, "author and command are required")
	}
	n, err := h.port.CallsToday(r.Context(), in.Author, in.Command)
	if err != nil {
		return nil, err
	}
	return CallsResponse{Author: in.Author, Command: in.Command, Calls: n}, nil
}
