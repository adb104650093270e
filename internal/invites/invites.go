// Package invites hands out channel invite links.
package invites

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/internal/platform"
)

const component = "service.invites"

// Service creates invite links through the platform.
type Service struct {
	messenger platform.Messenger
	cache     Cache
}

// New builds a service. A nil cache falls back to process memory.
func New(m platform.Messenger, cache Cache) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{messenger: m, cache: cache}
}

// ChannelLink returns the shared unlimited link of a channel, creating it on first use.
func (s *Service) ChannelLink(ctx context.Context, channelID int64) (string, error) {
	link, ok, err := s.cache.Get(ctx, channelID)
	if err != nil {
		logger.Warn(ctx, component, "invite.cache.get.fail",
			slog.Int64("channel_id", channelID),
			slog.String("err", err.Error()),
		)
	}
	if ok && link != "" {
		return link, nil
	}

	link, err = s.messenger.CreateInviteLink(ctx, channelID, 0)
	if err != nil {
		return "", fmt.Errorf("invites: create link for %d: %w", channelID, err)
	}
	if err := s.cache.Set(ctx, channelID, link); err != nil {
		logger.Warn(ctx, component, "invite.cache.set.fail",
			slog.Int64("channel_id", channelID),
			slog.String("err", err.Error()),
		)
	}
	logger.Info(ctx, component, "invite.created",
		slog.Int64("channel_id", channelID),
		slog.String("kind", "shared"),
	)
	return link, nil
}

// PersonalLink creates a single-use link for one join.
func (s *Service) PersonalLink(ctx context.Context, channelID int64) (string, error) {
	link, err := s.messenger.CreateInviteLink(ctx, channelID, 1)
	if err != nil {
		return "", fmt.Errorf("invites: create personal link for %d: %w", channelID, err)
	}
	logger.Info(ctx, component, "invite.created",
		slog.Int64("channel_id", channelID),
		slog.String("kind", "personal"),
	)
	return link, nil
}
