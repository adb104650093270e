package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/communitybot/core/config"
	"github.com/m3rciful/communitybot/core/telegram/middleware"
)

// DefaultMiddlewares is the global chain: panic recovery, the per-user limiter when
// configured, then request logging and outbound counters. Membership updates are
// never limited since Telegram delivers them in bursts after a resync.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use:  middleware.RateLimitMiddleware(rateLimitOptions(cfg.RateLimit, onLimited)),
		})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimitOptions(rl coreconfig.RateLimitConfig, onLimited tele.HandlerFunc) middleware.RateLimitOptions {
	exclude := map[string]struct{}{coreconfig.UpdateChatMember: {}}
	for _, kind := range rl.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return middleware.RateLimitOptions{
		Interval:  time.Duration(rl.IntervalMS) * time.Millisecond,
		Burst:     rl.Burst,
		Exclude:   exclude,
		OnLimited: onLimited,
	}
}
