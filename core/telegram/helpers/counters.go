package helpers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// CountersKey is the tele.Context key of the per-update *Counters.
const CountersKey = "out_counters"

type countersCtxKey struct{}

// Counters tallies outbound messages produced while handling one update.
type Counters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

// Add records one outbound message.
func (c *Counters) Add(withKeyboard bool) {
	c.messages.Add(1)
	if withKeyboard {
		c.keyboard.Store(true)
	}
}

// Snapshot returns the message count and whether any message carried a keyboard.
func (c *Counters) Snapshot() (int, bool) {
	if c == nil {
		return 0, false
	}
	return int(c.messages.Load()), c.keyboard.Load()
}

// WithCounters attaches c to ctx.
func WithCounters(ctx context.Context, c *Counters) context.Context {
	return context.WithValue(ctx, countersCtxKey{}, c)
}

// CountSent records an outbound message on the counters carried by ctx, if any.
func CountSent(ctx context.Context, withKeyboard bool) {
	if c, ok := ctx.Value(countersCtxKey{}).(*Counters); ok && c != nil {
		c.Add(withKeyboard)
	}
}

// CountersOf returns the counters stored on c by the metrics middleware.
func CountersOf(c tele.Context) *Counters {
	if c == nil {
		return nil
	}
	cnt, _ := c.Get(CountersKey).(*Counters)
	return cnt
}
