// Package helpers carries per-update state between middleware and handlers: the
// request context used for logging and the outbound message counters.
package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
)

// requestKey stores the request context on tele.Context.
const requestKey = "request_ctx"

func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(requestKey, ctx)
	}
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(requestKey).(context.Context)
	return ctx, ok && ctx != nil
}

// IDs returns the update, chat and sender ids of c; absent parts are zero.
func IDs(c tele.Context) (updateID int, chatID, userID int64) {
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return c.Update().ID, chatID, userID
}

// NewContext derives a request context from the update in c. An empty rid is
// computed from the update ids.
func NewContext(c tele.Context, rid string) context.Context {
	updateID, chatID, userID := IDs(c)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithUpdateMeta(logger.WithRID(context.Background(), rid), updateID, userID, chatID)
	if cnt := CountersOf(c); cnt != nil {
		ctx = WithCounters(ctx, cnt)
	}
	return logger.WithLogger(ctx, logger.Component("tg"))
}

// BuildContext returns the stored request context, creating and storing one for
// handlers reached without the logging middleware.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	rid, _ := c.Get("rid").(string)
	ctx := NewContext(c, rid)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the request context with the handler name for later log lines.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" && logger.HandlerFrom(ctx) != handler {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}
