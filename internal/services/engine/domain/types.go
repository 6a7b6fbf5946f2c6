// Package domain defines engine types and ports
package domain

import (
	"context"
	"time"
)

// TriggeringEvent is one observed comment that may deserve a reaction
type TriggeringEvent struct {
	// ID is author + "/" + permlink, the ledger key
	ID string
	// Author wrote the comment carrying the command
	Author string
	// Recipient is the parent comment's author, the tip target
	Recipient string
	// ParentPermlink locates the parent post for the vote
	ParentPermlink string
	Body           string
	BlockNum       uint32
	ObservedAt     time.Time
}

// RunnerPort runs the long-lived reaction loop
type RunnerPort interface {
	Run(ctx context.Context) error
}
