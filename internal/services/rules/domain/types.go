// Package domain defines rules service types and ports
package domain

import "tipjar/internal/core/tipping"

// Level re-exports the tipping level shape for persistence and transport
type Level = tipping.Level

// Params are the operator-mutable bot parameters from bot_config
type Params struct {
	BotAccount       string
	TokenSymbol      string
	MaxCommands      int
	RequireStake     bool
	TransfersEnabled bool
	VotesEnabled     bool
	VoteMandatory    bool
	BannedCallers    []string
	BannedRecipients []string
	NoLimitSenders   []string
}
