// Package errreport relays unhandled update errors to the bot admins.
package errreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/format"
	"github.com/m3rciful/communitybot/core/telegram/middleware"
	"github.com/m3rciful/communitybot/internal/platform"
)

// MaxMessageRunes is the Telegram limit for one text message.
const MaxMessageRunes = 4096

const component = "service.errors"

// Apology is sent to the chat whose update failed.
const Apology = "❗️ Something went wrong in the bot. The admins have already been notified."

// Describer renders the conversation state of a chat.
type Describer interface {
	Describe(ctx context.Context, chatID int64) string
}

// Recipients lists the distinct admin identities.
type Recipients interface {
	Recipients(ctx context.Context) ([]int64, error)
}

// Incident is one failed update.
type Incident struct {
	Err      error
	UpdateID int
	ChatID   int64
	UserID   int64
	// ReplyTo receives the apology; 0 sends none.
	ReplyTo int64
	// Update is a dump of the raw update, if available.
	Update string
}

// Reporter logs incidents and notifies admins.
type Reporter struct {
	admins     Recipients
	notifier   platform.Notifier
	describers []Describer
}

// New builds a reporter. Describers contribute to the conversation snapshot.
func New(admins Recipients, notifier platform.Notifier, describers ...Describer) *Reporter {
	return &Reporter{admins: admins, notifier: notifier, describers: describers}
}

// Report never fails; every delivery problem is logged.
func (r *Reporter) Report(ctx context.Context, in Incident) {
	if in.Err == nil {
		return
	}
	snapshot := r.snapshot(ctx, in.ChatID)
	stack := stackOf(in.Err)

	logger.Error(ctx, component, "update.unhandled",
		slog.Int("update_id", in.UpdateID),
		slog.Int64("chat_id", in.ChatID),
		slog.Int64("user_id", in.UserID),
		slog.String("err", in.Err.Error()),
		slog.String("snapshot", snapshot),
		slog.String("stack", stack),
	)

	text := render(in, snapshot, stack)
	ids, err := r.admins.Recipients(ctx)
	if err != nil {
		logger.Error(ctx, component, "report.recipients.fail", slog.String("err", err.Error()))
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		for _, part := range format.Chunk(text, MaxMessageRunes) {
			if err := r.notifier.Notify(ctx, id, platform.Text{Body: part, NoPreview: true}); err != nil {
				logger.Warn(ctx, component, "report.deliver.fail",
					slog.Int64("admin_id", id),
					slog.String("err", err.Error()),
				)
				break
			}
		}
	}

	if in.ReplyTo != 0 {
		if err := r.notifier.Notify(ctx, in.ReplyTo, platform.Text{Body: Apology}); err != nil {
			logger.Debug(ctx, component, "apology.fail", slog.String("err", err.Error()))
		}
	}
}

func (r *Reporter) snapshot(ctx context.Context, chatID int64) string {
	if chatID == 0 || len(r.describers) == 0 {
		return "n/a"
	}
	parts := make([]string, 0, len(r.describers))
	for _, d := range r.describers {
		parts = append(parts, d.Describe(ctx, chatID))
	}
	return strings.Join(parts, "; ")
}

func stackOf(err error) string {
	var pe *middleware.PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		return string(pe.Stack)
	}
	return "n/a (returned error)"
}

func render(in Incident, snapshot, stack string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- ERROR ---\n%s\n\n", in.Err.Error())
	fmt.Fprintf(&b, "--- CONTEXT ---\nupdate_id=%d chat_id=%d user_id=%d\n\n", in.UpdateID, in.ChatID, in.UserID)
	if in.Update != "" {
		fmt.Fprintf(&b, "--- UPDATE ---\n%s\n\n", in.Update)
	}
	fmt.Fprintf(&b, "--- CONVERSATION ---\n%s\n\n", snapshot)
	fmt.Fprintf(&b, "--- STACK ---\n%s", stack)
	return b.String()
}
