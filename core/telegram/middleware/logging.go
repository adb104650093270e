package middleware

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/communitybot/core/telegram/helpers"
)

// receivedKey marks an update whose context is built and receipt logged. The chain
// is installed both globally and per route, so the second pass is a no-op.
const receivedKey = "update_received"

// LoggerMiddleware builds the request context (rid, update metadata) once per update
// and logs a sampled "update.received" line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Get(receivedKey) != nil {
			return next(c)
		}
		updateID, chatID, userID := tghelpers.IDs(c)
		rid := logger.BuildRID(updateID, chatID, userID)
		c.Set(receivedKey, true)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := tghelpers.NewContext(c, rid)
		tghelpers.StoreContext(c, ctx)
		if logger.ShouldSampleDebug() {
			logReceipt(ctx, c)
		}
		return next(c)
	}
}

func logReceipt(ctx context.Context, c tele.Context) {
	upd := c.Update()
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs,
			slog.String("username", logger.SanitizeLimit(user.Username, 64)),
			slog.String("lang", user.LanguageCode),
		)
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs,
			slog.String("payload", logger.SanitizeLimit(c.Text(), 256)),
			slog.String("album_id", upd.Message.AlbumID),
		)
	case upd.ChatMember != nil:
		attrs = append(attrs, slog.String("payload",
			string(roleOf(upd.ChatMember.OldChatMember))+"->"+string(roleOf(upd.ChatMember.NewChatMember))))
	}
	logger.Debug(ctx, "tg", "update.received", attrs...)
}

func roleOf(m *tele.ChatMember) tele.MemberStatus {
	if m == nil {
		return ""
	}
	return m.Role
}

// tgContext returns the request context of c, building it when no middleware did.
func tgContext(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}
