// Package feed produces the market event sequence the control loop consumes.
// A feed is lazy and unbounded: events appear on the channel as the source
// yields them, and the channel closes when the source is exhausted or the
// context ends.
package feed

import (
	"context"

	"github.com/rustyeddy/tradebot/market"
)

type Feed interface {
	// Events is the event channel. Owned by the feed and closed by Run.
	Events() <-chan market.Event

	// Run drives the feed until the source is exhausted or ctx ends.
	Run(ctx context.Context) error
}
