// Package tipping resolves a parsed command into a concrete action plan
package tipping

import "strings"

// Level is one configured trigger command and its payout rule
type Level struct {
	Command           string  // canonical upper-case trigger name
	Amount            float64 // token units sent to the recipient
	Weight            int     // vote weight in percent, signed
	MinAccountAgeDays int
	MinBalance        float64 // 0 = no balance requirement
	DailyLimit        int     // max successful calls per author per UTC day, 0 = unlimited
	CallerAmount      float64 // optional side-tip back to the author, 0 = none
	Enabled           bool
}

// Snapshot is an immutable view of the bot rules, passed by value
type Snapshot struct {
	BotAccount       string
	TokenSymbol      string
	Levels           map[string]Level // keyed by canonical command name
	BannedCallers    map[string]struct{}
	BannedRecipients map[string]struct{}
	NoLimit          map[string]struct{} // authors exempt from age/balance/daily limits
	MaxCommands      int                 // max bang tokens per comment, 0 = unlimited
	RequireStake     bool                // eligibility balance is staked, not liquid
	TransfersEnabled bool
	VotesEnabled     bool
	VoteMandatory    bool
}

// Caller carries the per-event facts the engine gathered before resolving.
// Keeping lookups out of Resolve keeps it pure
type Caller struct {
	Author         string
	Recipient      string
	AccountAgeDays int
	Balance        float64 // staked or liquid per Snapshot.RequireStake
	CallsToday     int     // successful calls by Author for this command, UTC day
	CommandCount   int     // total bang tokens in the comment
}

// Plan is the resolved action for one qualifying event
type Plan struct {
	Command      string
	Amount       float64
	CallerAmount float64
	Weight       int
	Recipient    string
}

// Reason identifies why an event was rejected
type Reason string

// Rejection reasons, ordered by check priority
const (
	ReasonUnknownCommand  Reason = "unknown_command"
	ReasonSelfTip         Reason = "self_tip"
	ReasonBotRecipient    Reason = "bot_recipient"
	ReasonBannedCaller    Reason = "banned_caller"
	ReasonBannedRecipient Reason = "banned_recipient"
	ReasonAccountTooYoung Reason = "account_too_young"
	ReasonLowBalance      Reason = "low_balance"
	ReasonDailyLimit      Reason = "daily_limit"
	ReasonTooManyCommands Reason = "too_many_commands"
	ReasonMisconfigured   Reason = "misconfigured_rule"
)

// Resolve maps (command, caller, snapshot) to a Plan or a rejection Reason.
// Identical inputs always yield identical outputs
func Resolve(name string, c Caller, s Snapshot) (Plan, Reason, bool) {
	lvl, ok := s.Levels[strings.ToUpper(name)]
	if !ok || !lvl.Enabled {
		return Plan{}, ReasonUnknownCommand, false
	}

	if equalAccount(c.Author, c.Recipient) {
		return Plan{}, ReasonSelfTip, false
	}
	if equalAccount(c.Recipient, s.BotAccount) {
		return Plan{}, ReasonBotRecipient, false
	}
	if _, banned := s.BannedCallers[lower(c.Author)]; banned {
		return Plan{}, ReasonBannedCaller, false
	}
	if _, banned := s.BannedRecipients[lower(c.Recipient)]; banned {
		return Plan{}, ReasonBannedRecipient, false
	}

	_, exempt := s.NoLimit[lower(c.Author)]
	if !exempt {
		if lvl.MinAccountAgeDays > 0 && c.AccountAgeDays < lvl.MinAccountAgeDays {
			return Plan{}, ReasonAccountTooYoung, false
		}
		if lvl.MinBalance > 0 && c.Balance < lvl.MinBalance {
			return Plan{}, ReasonLowBalance, false
		}
		if lvl.DailyLimit > 0 && c.CallsToday >= lvl.DailyLimit {
			return Plan{}, ReasonDailyLimit, false
		}
	}
	if s.MaxCommands > 0 && c.CommandCount > s.MaxCommands {
		return Plan{}, ReasonTooManyCommands, false
	}

	if lvl.Amount <= 0 || lvl.Weight <= 0 {
		return Plan{}, ReasonMisconfigured, false
	}

	return Plan{
		Command:      lvl.Command,
		Amount:       lvl.Amount,
		CallerAmount: lvl.CallerAmount,
		Weight:       lvl.Weight,
		Recipient:    c.Recipient,
	}, "", true
}

// EnabledCommands lists the trigger names the parser should look for
func (s Snapshot) EnabledCommands() []string {
	out := make([]string, 0, len(s.Levels))
	for name, lvl := range s.Levels {
		if lvl.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Commands lists every configured trigger name, enabled or not
func (s Snapshot) Commands() []string {
	out := make([]string, 0, len(s.Levels))
	for name := range s.Levels {
		out = append(out, name)
	}
	return out
}

func equalAccount(a, b string) bool { return a != "" && lower(a) == lower(b) }

func lower(s string) string { return strings.ToLower(s) }
