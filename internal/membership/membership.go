// Package membership keeps the subscriptions table in step with channel membership.
package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/platform"
)

const component = "service.membership"

// Store is the persistence the tracker and the resync need.
type Store interface {
	AddSubscription(ctx context.Context, userID, channelID int64) error
	RemoveSubscription(ctx context.Context, userID, channelID int64) error
	UserIDs(ctx context.Context) ([]int64, error)
	ReplaceSubscribers(ctx context.Context, channelID int64, userIDs []int64) error
}

// Change is a chat member update of one user in one chat.
type Change struct {
	ChatID     int64
	ChatTitle  string
	UserID     int64
	FirstName  string
	Old        platform.MemberStatus
	New        platform.MemberStatus
	ViaBotLink bool
}

// Tracker reacts to member updates of the configured channels.
type Tracker struct {
	store    Store
	channels config.ChannelList
	notifier platform.Notifier
}

// NewTracker builds a tracker. A nil notifier disables welcome messages.
func NewTracker(store Store, channels config.ChannelList, notifier platform.Notifier) *Tracker {
	return &Tracker{store: store, channels: channels, notifier: notifier}
}

// Handle applies one change. Updates from chats that are not configured channels are ignored.
func (t *Tracker) Handle(ctx context.Context, ch Change) error {
	channel, ok := t.channels.Lookup(ch.ChatID)
	if !ok {
		return nil
	}
	was, is := ch.Old.IsMember(), ch.New.IsMember()
	attrs := []slog.Attr{
		slog.Int64("channel_id", ch.ChatID),
		slog.Int64("user_id", ch.UserID),
		slog.String("old", string(ch.Old)),
		slog.String("new", string(ch.New)),
	}

	switch {
	case !was && is:
		if err := t.store.AddSubscription(ctx, ch.UserID, ch.ChatID); err != nil {
			return fmt.Errorf("membership: add subscription: %w", err)
		}
		logger.Info(ctx, component, "member.joined", append(attrs, slog.Bool("via_bot_link", ch.ViaBotLink))...)
		if !ch.ViaBotLink {
			title := ch.ChatTitle
			if title == "" {
				title = channel.Label
			}
			t.welcome(ctx, ch.UserID, ch.FirstName, title)
		}
	case was && !is:
		if err := t.store.RemoveSubscription(ctx, ch.UserID, ch.ChatID); err != nil {
			return fmt.Errorf("membership: remove subscription: %w", err)
		}
		logger.Info(ctx, component, "member.left", attrs...)
	}
	return nil
}

func (t *Tracker) welcome(ctx context.Context, userID int64, firstName, title string) {
	if t.notifier == nil {
		return
	}
	if firstName == "" {
		firstName = "there"
	}
	text := platform.Text{Body: fmt.Sprintf(
		"Hi, %s! 👋\n\nThanks for subscribing to «%s»! Glad to see you in our community.",
		firstName, title,
	)}
	// Users who never opened a private chat with the bot cannot be messaged.
	if err := t.notifier.Notify(ctx, userID, text); err != nil {
		logger.Warn(ctx, component, "welcome.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// Syncer rebuilds subscriptions from live member statuses.
type Syncer struct {
	store     Store
	channels  config.ChannelList
	messenger platform.Messenger
}

// NewSyncer builds a resync runner.
func NewSyncer(store Store, channels config.ChannelList, m platform.Messenger) *Syncer {
	return &Syncer{store: store, channels: channels, messenger: m}
}

// Resync asks the platform for every known user in every configured channel and
// replaces each channel's subscription rows. It returns the number of subscriptions found.
func (s *Syncer) Resync(ctx context.Context) (int, error) {
	users, err := s.store.UserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("membership: list users: %w", err)
	}
	logger.Info(ctx, component, "resync.start",
		slog.Int("users", len(users)),
		slog.Int("channels", len(s.channels)),
	)

	total, lookupErrs := 0, 0
	for _, channel := range s.channels {
		members := make([]int64, 0, len(users))
		for _, userID := range users {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			st, err := s.messenger.MemberStatus(ctx, channel.ID, userID)
			if err != nil {
				lookupErrs++
				if logger.ShouldSampleDebug() {
					logger.Debug(ctx, component, "resync.lookup.fail",
						slog.Int64("channel_id", channel.ID),
						slog.Int64("user_id", userID),
						slog.String("err", err.Error()),
					)
				}
				continue
			}
			if st.IsMember() {
				members = append(members, userID)
			}
		}
		if err := s.store.ReplaceSubscribers(ctx, channel.ID, members); err != nil {
			return total, fmt.Errorf("membership: replace subscribers of %d: %w", channel.ID, err)
		}
		total += len(members)
	}

	logger.Info(ctx, component, "resync.done",
		slog.Int("subscriptions", total),
		slog.Int("lookup_errors", lookupErrs),
	)
	return total, nil
}
