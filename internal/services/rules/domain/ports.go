package domain

import (
	"context"

	"tipjar/internal/core/tipping"
)

// SnapshotPort hands out the current immutable rules view
type SnapshotPort interface {
	// Current returns the latest snapshot, by value
	Current() tipping.Snapshot
	// Refresh forces a reload from the store
	Refresh(ctx context.Context) error
	// Run refreshes on an interval until ctx is canceled
	Run(ctx context.Context) error
}

// CursorPort persists the feed's block checkpoint in bot_config
type CursorPort interface {
	LoadCursor(ctx context.Context) (uint32, error)
	SaveCursor(ctx context.Context, block uint32) error
}

// LevelsPort lists configured tipping levels for operator tooling
type LevelsPort interface {
	Levels(ctx context.Context) ([]Level, error)
}
