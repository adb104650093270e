package logger

import (
	"context"
	"log/slog"
)

type metaKey struct{}

// meta is the correlation data carried by a context. Contexts hold a value copy,
// so deriving a child never mutates the parent.
type meta struct {
	log      *slog.Logger
	rid      string
	runID    string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

func metaOf(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaOf(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithLogger stores log in ctx; a nil logger leaves ctx untouched.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.log = log })
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := metaOf(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

func RIDFrom(ctx context.Context) string { return metaOf(ctx).rid }

// WithUpdateMeta attaches the identifiers of the update being handled.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler names the route serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

func HandlerFrom(ctx context.Context) string { return metaOf(ctx).handler }

// WithRunID tags a long-running job (a broadcast, a resync) so all of its records correlate.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.runID = runID })
}

func RunIDFrom(ctx context.Context) string { return metaOf(ctx).runID }
func UserIDFrom(ctx context.Context) int64 { return metaOf(ctx).userID }
func ChatIDFrom(ctx context.Context) int64 { return metaOf(ctx).chatID }
func UpdateIDFrom(ctx context.Context) int { return metaOf(ctx).updateID }

// fields lists the populated correlation values in render order.
func (m meta) fields() []field {
	out := make([]field, 0, 6)
	if m.rid != "" {
		out = append(out, field{"rid", m.rid})
	}
	if m.runID != "" {
		out = append(out, field{"run_id", m.runID})
	}
	if m.updateID != 0 {
		out = append(out, field{"update_id", int64(m.updateID)})
	}
	if m.userID != 0 {
		out = append(out, field{"user_id", m.userID})
	}
	if m.chatID != 0 {
		out = append(out, field{"chat_id", m.chatID})
	}
	if m.handler != "" {
		out = append(out, field{"handler", m.handler})
	}
	return out
}
