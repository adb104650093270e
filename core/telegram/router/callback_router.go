package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/communitybot/core/telegram"
	"github.com/m3rciful/communitybot/core/telegram/callbacks"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound is used when the registry has no not-found handler either.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by the unique part of its data.
// Handlers answer the query themselves; Telegram accepts one answer per query.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: guarded(func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			start := time.Now()
			key, _ := callbacks.Parse(c.Callback())
			h, found := reg.GetCallback(key)
			extras := []slog.Attr{slog.String("cb_key", key)}
			if !found {
				h = notFound(reg, opts)
				extras = append(extras, slog.String("cause", "not_found"))
			}
			return traced(c, handlerName("callback", key), start, func() error { return h(c) }, extras...)
		}),
	}
}

func notFound(reg *tg.Registry, opts CallbackOptions) tele.HandlerFunc {
	if h := reg.CallbackNotFound(); h != nil {
		return h
	}
	if opts.NotFound != nil {
		return opts.NotFound
	}
	return func(c tele.Context) error { return c.Respond() }
}
