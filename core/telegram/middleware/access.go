package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
)

// AccessOptions gate a handler. Allow runs on every update so permission changes
// apply immediately.
type AccessOptions struct {
	Allow    func(ctx context.Context, userID int64) (bool, error)
	OnReject tele.HandlerFunc
}

// AccessMiddleware passes only updates whose sender opts.Allow accepts. Updates
// without a sender and rejected ones are dropped unless OnReject is set; lookup
// errors are returned to the caller.
func AccessMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Allow == nil {
			return next
		}
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			ctx := tgContext(c)
			switch ok, err := opts.Allow(ctx, user.ID); {
			case err != nil:
				return err
			case ok:
				return next(c)
			}
			logger.Debug(ctx, "tg", "access.denied",
				slog.String("status", "skip"),
				slog.String("handler", logger.HandlerFrom(ctx)),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
