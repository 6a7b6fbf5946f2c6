package tipping

import "testing"

func snap() Snapshot {
	return Snapshot{
		BotAccount:  "tipjar",
		TokenSymbol: "HUG",
		Levels: map[string]Level{
			"HUG": {
				Command:           "HUG",
				Amount:            0.1,
				Weight:            20,
				MinAccountAgeDays: 7,
				MinBalance:        1.0,
				DailyLimit:        3,
				CallerAmount:      0.01,
				Enabled:           true,
			},
			"OLD": {Command: "OLD", Amount: 1, Weight: 10, Enabled: false},
			"BAD": {Command: "BAD", Amount: 0, Weight: 10, Enabled: true},
		},
		BannedCallers:    map[string]struct{}{"spammy": {}},
		BannedRecipients: map[string]struct{}{"scammy": {}},
		NoLimit:          map[string]struct{}{"whale": {}},
		MaxCommands:      2,
		TransfersEnabled: true,
		VotesEnabled:     true,
	}
}

func eligible() Caller {
	return Caller{
		Author:         "alice",
		Recipient:      "bob",
		AccountAgeDays: 100,
		Balance:        50,
		CallsToday:     0,
		CommandCount:   1,
	}
}

func TestResolve_Success(t *testing.T) {
	t.Parallel()

	plan, reason, ok := Resolve("hug", eligible(), snap())
	if !ok {
		t.Fatalf("expected plan, got rejection %q", reason)
	}
	if plan.Amount != 0.1 || plan.Weight != 20 || plan.CallerAmount != 0.01 {
		t.Fatalf("plan carries wrong values: %+v", plan)
	}
	if plan.Recipient != "bob" {
		t.Fatalf("recipient = %q, want bob", plan.Recipient)
	}
}

func TestResolve_Purity(t *testing.T) {
	t.Parallel()

	c, s := eligible(), snap()
	p1, r1, ok1 := Resolve("HUG", c, s)
	p2, r2, ok2 := Resolve("HUG", c, s)
	if p1 != p2 || r1 != r2 || ok1 != ok2 {
		t.Fatalf("identical inputs produced different outputs: %+v vs %+v", p1, p2)
	}
}

func TestResolve_RejectionPriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		cmd    string
		mut    func(*Caller)
		reason Reason
	}{
		{"unknown", "NOPE", nil, ReasonUnknownCommand},
		{"disabled", "OLD", nil, ReasonUnknownCommand},
		{"self tip", "HUG", func(c *Caller) { c.Recipient = "Alice" }, ReasonSelfTip},
		{"bot recipient", "HUG", func(c *Caller) { c.Recipient = "tipjar" }, ReasonBotRecipient},
		{"banned caller", "HUG", func(c *Caller) { c.Author = "Spammy" }, ReasonBannedCaller},
		{"banned recipient", "HUG", func(c *Caller) { c.Recipient = "scammy" }, ReasonBannedRecipient},
		{"too young", "HUG", func(c *Caller) { c.AccountAgeDays = 3 }, ReasonAccountTooYoung},
		{"low balance", "HUG", func(c *Caller) { c.Balance = 0.5 }, ReasonLowBalance},
		{"daily limit", "HUG", func(c *Caller) { c.CallsToday = 3 }, ReasonDailyLimit},
		{"too many commands", "HUG", func(c *Caller) { c.CommandCount = 5 }, ReasonTooManyCommands},
		{"misconfigured", "BAD", nil, ReasonMisconfigured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := eligible()
			if tc.mut != nil {
				tc.mut(&c)
			}
			_, reason, ok := Resolve(tc.cmd, c, snap())
			if ok {
				t.Fatalf("expected rejection")
			}
			if reason != tc.reason {
				t.Fatalf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestResolve_SelfTipBeatsEligibility(t *testing.T) {
	t.Parallel()

	// an ineligible author self-tipping must still report self_tip
	c := eligible()
	c.Recipient = "alice"
	c.AccountAgeDays = 0
	c.Balance = 0

	_, reason, ok := Resolve("HUG", c, snap())
	if ok || reason != ReasonSelfTip {
		t.Fatalf("reason = %q, want %q", reason, ReasonSelfTip)
	}
}

func TestResolve_NoLimitBypass(t *testing.T) {
	t.Parallel()

	c := eligible()
	c.Author = "whale"
	c.AccountAgeDays = 0
	c.Balance = 0
	c.CallsToday = 99

	if _, reason, ok := Resolve("HUG", c, snap()); !ok {
		t.Fatalf("no-limit author should bypass eligibility, got %q", reason)
	}

	// but bans and self-tip still apply
	s := snap()
	s.BannedCallers["whale"] = struct{}{}
	if _, reason, ok := Resolve("HUG", c, s); ok || reason != ReasonBannedCaller {
		t.Fatalf("no-limit author must not bypass bans, got ok=%v reason=%q", ok, reason)
	}

	c2 := eligible()
	c2.Author = "whale"
	c2.Recipient = "whale"
	if _, reason, ok := Resolve("HUG", c2, snap()); ok || reason != ReasonSelfTip {
		t.Fatalf("no-limit author must not bypass self-tip, got ok=%v reason=%q", ok, reason)
	}
}

func TestResolve_MaxCommandsUnlimitedWhenZero(t *testing.T) {
	t.Parallel()

	s := snap()
	s.MaxCommands = 0
	c := eligible()
	c.CommandCount = 50

	if _, reason, ok := Resolve("HUG", c, s); !ok {
		t.Fatalf("MaxCommands=0 should be unlimited, got %q", reason)
	}
}

func TestEnabledCommands(t *testing.T) {
	t.Parallel()

	got := snap().EnabledCommands()
	seen := map[string]bool{}
	for _, n := range got {
		seen[n] = true
	}
	if !seen["HUG"] || !seen["BAD"] || seen["OLD"] {
		t.Fatalf("EnabledCommands = %v", got)
	}
}
