// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package event

import (
	"context"

	"github.com/danielhkuo/tallyup/models"
)

// VotePublisher emits a recorded vote to downstream consumers (analytics,
// live dashboards). Publishing is fire-and-forget relative to the vote
// response: a failure is logged by the caller, never surfaced to the voter.
type VotePublisher interface {
	Publish(ctx context.Context, vote models.Vote) error
	Close() error
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, vote models.Vote) error { return nil }
func (NopPublisher) Close() error                                        { return nil }
