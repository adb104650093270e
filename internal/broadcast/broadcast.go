// Package broadcast delivers one piece of content to many recipients.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/platform"
)

const component = "service.broadcast"

// MaxAlbumItems is the platform limit of a media group.
const MaxAlbumItems = 10

// ErrNoMedia is returned when none of the collected items can go into an album.
var ErrNoMedia = errors.New("broadcast: no photo or video to send")

// Item is one collected message.
type Item struct {
	Source platform.MessageRef
	Media  platform.MediaItem
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Recipients int
	Sent       int
	Failed     int
}

// Album turns collected items into an album of photos and videos. The first
// non-empty caption is rendered as HTML on the first entry only.
func Album(items []Item) []platform.MediaItem {
	caption := ""
	for _, it := range items {
		if it.Media.Caption != "" {
			caption = it.Media.Caption
			break
		}
	}
	out := make([]platform.MediaItem, 0, len(items))
	for _, it := range items {
		if it.Media.Kind != platform.MediaPhoto && it.Media.Kind != platform.MediaVideo {
			continue
		}
		if len(out) == MaxAlbumItems {
			break
		}
		out = append(out, platform.MediaItem{Kind: it.Media.Kind, FileID: it.Media.FileID})
	}
	if len(out) > 0 && caption != "" {
		out[0].Caption = caption
		out[0].Mode = platform.ModeHTML
	}
	return out
}

// Sender delivers content sequentially with a fixed pause between recipients.
type Sender struct {
	messenger platform.Messenger
	interval  time.Duration
}

// New builds a sender pacing deliveries by interval.
func New(m platform.Messenger, interval time.Duration) *Sender {
	return &Sender{messenger: m, interval: interval}
}

// Deliver sends items to every recipient. A failure for one recipient is
// counted and never stops the run. Only context cancellation ends it early.
func (s *Sender) Deliver(ctx context.Context, recipients []int64, items []Item) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Recipients: len(recipients)}
	if len(items) == 0 {
		return rep, fmt.Errorf("broadcast: nothing to send")
	}

	var send func(ctx context.Context, chatID int64) error
	if len(items) == 1 {
		src := items[0].Source
		send = func(ctx context.Context, chatID int64) error {
			return s.messenger.Copy(ctx, chatID, src)
		}
	} else {
		album := Album(items)
		if len(album) == 0 {
			return rep, ErrNoMedia
		}
		send = func(ctx context.Context, chatID int64) error {
			return s.messenger.SendAlbum(ctx, chatID, album)
		}
	}

	ctx = logger.WithRunID(ctx, rep.RunID)
	start := time.Now()
	logger.Info(ctx, component, "broadcast.start",
		slog.String("run_id", rep.RunID),
		slog.Int("recipients", len(recipients)),
		slog.Int("items", len(items)),
	)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.interval), 1)
	}
	for _, chatID := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			logger.Warn(ctx, component, "broadcast.aborted",
				slog.String("run_id", rep.RunID),
				slog.Int("sent", rep.Sent),
				slog.Int("failed", rep.Failed),
				slog.String("err", err.Error()),
			)
			return rep, fmt.Errorf("broadcast: %w", err)
		}
		if err := send(ctx, chatID); err != nil {
			rep.Failed++
			derr := domain.DeliveryError(fmt.Sprintf("deliver to %d", chatID), err)
			logger.Warn(ctx, component, "broadcast.deliver.fail",
				slog.String("run_id", rep.RunID),
				slog.Int64("chat_id", chatID),
				slog.String("err", derr.Error()),
			)
			continue
		}
		rep.Sent++
	}

	logger.Info(ctx, component, "broadcast.done",
		slog.String("run_id", rep.RunID),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return rep, nil
}
