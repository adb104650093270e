package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
)

// RateLimitOptions configures the per-user limiter.
type RateLimitOptions struct {
	// Interval is the sustained spacing between two updates of one user.
	Interval time.Duration
	// Burst updates may arrive back to back before Interval applies; minimum 1.
	Burst int
	// Exclude lists update kinds ("message", "callback", "chat_member", ...) that bypass the limiter.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiter keeps a token bucket per user and forgets users idle for a while.
type userLimiter struct {
	every rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	visitors  map[int64]*visitor
	lastSweep time.Time
}

func newUserLimiter(interval time.Duration, burst int) *userLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := 10 * interval
	if idle < time.Minute {
		idle = time.Minute
	}
	return &userLimiter{
		every:    rate.Every(interval),
		burst:    burst,
		idle:     idle,
		visitors: make(map[int64]*visitor),
	}
}

func (l *userLimiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > l.idle {
		for id, v := range l.visitors {
			if now.Sub(v.seen) > l.idle {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.every, l.burst)}
		l.visitors[userID] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

// RateLimitMiddleware drops updates of a user that arrive faster than opts allow.
// Album parts arrive as a burst of separate messages and are never limited.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	limiter := newUserLimiter(opts.Interval, opts.Burst)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			upd := c.Update()
			if upd.Message != nil && upd.Message.AlbumID != "" {
				return next(c)
			}
			kind := updateKind(upd)
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if limiter.allow(user.ID, time.Now()) {
				return next(c)
			}

			attrs := []slog.Attr{slog.Int64("user_id", user.ID), slog.String("action", kind)}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.Warn(tgContext(c), "tg", "tg.rate_limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.ChatMember != nil:
		return "chat_member"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
