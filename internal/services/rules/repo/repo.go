// Package repo provides the rules repository implementation
package repo

import (
	"context"
	"strconv"
	"strings"

	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/store"

	"tipjar/internal/modkit/repokit"
	"tipjar/internal/services/rules/domain"
)

// Repo defines the rules repository contract
type Repo interface {
	// Params reads every bot_config row into a typed struct
	Params(ctx context.Context) (domain.Params, error)

	// Levels lists all tipping levels, enabled or not
	Levels(ctx context.Context) ([]domain.Level, error)

	// Cursor checkpoint, stored as a bot_config value
	GetCursor(ctx context.Context) (uint32, error)
	SetCursor(ctx context.Context, block uint32) error
}

type (
	// PG is a Postgres rules repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres rules repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// config keys in bot_config
const (
	keyBotAccount       = "bot_account"
	keyTokenSymbol      = "token_symbol"
	keyMaxCommands      = "max_commands"
	keyRequireStake     = "require_stake"
	keyEnableTransfer   = "enable_token_transfer"
	keyEnableUpvote     = "enable_upvote"
	keyVoteMandatory    = "vote_mandatory"
	keyBannedCallers    = "banned_callers"
	keyBannedRecipients = "banned_recipients"
	keyNoLimitSenders   = "no_limit_senders"
	keyCurrentBlock     = "current_block"
)

// Params reads every bot_config row into a typed struct
func (r *queries) Params(ctx context.Context) (domain.Params, error) {
	const sql = `SELECT name, value FROM bot_config`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return domain.Params{}, perr.FromPostgres(err, "rules params query")
	}
	defer rows.Close()

	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.Params{}, perr.FromPostgres(err, "rules params scan")
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return domain.Params{}, perr.FromPostgres(err, "rules params rows")
	}

	p := domain.Params{
		BotAccount:       kv[keyBotAccount],
		TokenSymbol:      kv[keyTokenSymbol],
		MaxCommands:      atoi(kv[keyMaxCommands]),
		RequireStake:     truthy(kv[keyRequireStake]),
		TransfersEnabled: truthy(kv[keyEnableTransfer]),
		VotesEnabled:     truthy(kv[keyEnableUpvote]),
		VoteMandatory:    truthy(kv[keyVoteMandatory]),
		BannedCallers:    csv(kv[keyBannedCallers]),
		BannedRecipients: csv(kv[keyBannedRecipients]),
		NoLimitSenders:   csv(kv[keyNoLimitSenders]),
	}
	if p.BotAccount == "" {
		return domain.Params{}, perr.New(perr.ErrorCodeValidation, "bot_config missing bot_account")
	}
	return p, nil
}

// Levels lists all tipping levels, enabled or not
func (r *queries) Levels(ctx context.Context) ([]domain.Level, error) {
	const sql = `
		SELECT command, amount, weight, min_account_age_days, min_balance,
		       daily_limit, caller_amount, enabled
		FROM tipping_levels
		ORDER BY command
	`
	out, err := store.Many(ctx, r.q, scanLevel, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "rules levels")
	}
	return out, nil
}

func scanLevel(row store.Row) (domain.Level, error) {
	var l domain.Level
	err := row.Scan(
		&l.Command, &l.Amount, &l.Weight, &l.MinAccountAgeDays, &l.MinBalance,
		&l.DailyLimit, &l.CallerAmount, &l.Enabled,
	)
	l.Command = strings.ToUpper(l.Command)
	return l, err
}

// GetCursor reads the feed checkpoint, 0 when unset
func (r *queries) GetCursor(ctx context.Context) (uint32, error) {
	const sql = `SELECT value FROM bot_config WHERE name = $1`
	v, err := store.Scalar[string](ctx, r.q, sql, keyCurrentBlock)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return 0, nil
		}
		return 0, perr.FromPostgres(err, "rules cursor read")
	}
	return uint32(atoi(v)), nil
}

// SetCursor durably stores the feed checkpoint
func (r *queries) SetCursor(ctx context.Context, block uint32) error {
	const sql = `
		INSERT INTO bot_config (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`
	_, err := r.q.Exec(ctx, sql, keyCurrentBlock, strconv.FormatUint(uint64(block), 10))
	return perr.FromPostgres(err, "rules cursor write")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func csv(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
