package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	tghelpers "github.com/m3rciful/communitybot/core/telegram/helpers"
	"github.com/m3rciful/communitybot/core/telegram/middleware"
)

// guarded adds the per-route recovery and request context to h.
func guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// traced runs fn as handler name and writes one "handler.handled" summary for it.
func traced(c tele.Context, name string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	status := "ok"
	if err != nil {
		status = "fail"
	}
	summarize(c, name, start, status, err, extras...)
	return err
}

// skipped records an update that no handler took.
func skipped(c tele.Context, name string, start time.Time) {
	summarize(c, name, start, "skip", nil)
}

func summarize(c tele.Context, name string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.GetCounters(c)
	outcome := status
	if status == "skip" {
		outcome = "ok"
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}, extras...)
	if err == nil {
		logger.Info(ctx, "tg", "handler.handled", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", deriveErrorCode(err)),
	)
	logger.Warn(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns "/manage_admins" or "Show Stats" into "manage_admins", "show_stats".
func handlerName(kind, name string) string {
	name = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(name), "/"), " ", "_"))
	if name == "" {
		name = "unknown"
	}
	if kind == "" {
		return name
	}
	return kind + "." + name
}

type coder interface{ Code() string }

// deriveErrorCode prefers a Code() anywhere in the chain and falls back to the error type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
