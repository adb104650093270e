package middleware

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/communitybot/core/telegram/helpers"
)

// MessageMetricsMiddleware gives every update fresh outbound counters. Replies made
// through tele.Context are counted here; other senders call helpers.CountSent with
// the request context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		cnt := &tghelpers.Counters{}
		c.Set(tghelpers.CountersKey, cnt)
		if ctx, ok := tghelpers.ContextFrom(c); ok {
			tghelpers.StoreContext(c, tghelpers.WithCounters(ctx, cnt))
		}
		return next(&countingContext{Context: c, cnt: cnt})
	}
}

// GetCounters returns the message count and keyboard flag of the current update.
func GetCounters(c tele.Context) (int, bool) {
	return tghelpers.CountersOf(c).Snapshot()
}

type countingContext struct {
	tele.Context
	cnt *tghelpers.Counters
}

func (c *countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		c.cnt.Add(withMarkup(opts))
	}
	return err
}

func (c *countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c *countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c *countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c *countingContext) SendAlbum(a tele.Album, opts ...interface{}) error {
	return c.count(c.Context.SendAlbum(a, opts...), opts)
}

func withMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v != nil
		case *tele.SendOptions:
			return v != nil && v.ReplyMarkup != nil
		}
	}
	return false
}
