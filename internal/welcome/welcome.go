// Package welcome renders the /start screen and hands out join links.
package welcome

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/format"
	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/platform"
)

// ActionJoin is the button that asks for a personal invite link.
const ActionJoin = "join"

const component = "service.welcome"

// Users records everyone who pressed /start.
type Users interface {
	UpsertUser(ctx context.Context, u domain.User) error
}

// Links creates invite links.
type Links interface {
	ChannelLink(ctx context.Context, channelID int64) (string, error)
	PersonalLink(ctx context.Context, channelID int64) (string, error)
}

// Options configures the welcome screen.
type Options struct {
	Channels config.ChannelList
	// Personal switches channel buttons to single-use links created on press.
	Personal bool
}

// Service serves the entry screen.
type Service struct {
	users     Users
	links     Links
	messenger platform.Messenger
	opts      Options
}

// New builds the service.
func New(users Users, links Links, m platform.Messenger, opts Options) *Service {
	return &Service{users: users, links: links, messenger: m, opts: opts}
}

// Start registers u and sends the welcome screen to chatID.
func (s *Service) Start(ctx context.Context, chatID int64, u domain.User) error {
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("welcome: register user: %w", err)
	}
	msg := platform.Text{
		Body: fmt.Sprintf("Hi, %s!\n\nWelcome! Choose a section you are interested in:",
			format.MentionHTML(u.ID, u.FirstName)),
		Mode:     platform.ModeHTML,
		Keyboard: s.keyboard(ctx),
	}
	if _, err := s.messenger.Send(ctx, chatID, msg); err != nil {
		return fmt.Errorf("welcome: send: %w", err)
	}
	return nil
}

func (s *Service) keyboard(ctx context.Context) platform.Keyboard {
	kb := make(platform.Keyboard, 0, len(s.opts.Channels))
	for _, ch := range s.opts.Channels {
		if s.opts.Personal {
			kb = append(kb, platform.Row(platform.Button{
				Text:    ch.Title(),
				Action:  ActionJoin,
				Payload: strconv.FormatInt(ch.ID, 10),
			}))
			continue
		}
		link, err := s.links.ChannelLink(ctx, ch.ID)
		if err != nil {
			// Usually the bot is not a channel admin with the invite right.
			logger.Error(ctx, component, "welcome.link.fail",
				slog.Int64("channel_id", ch.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		kb = append(kb, platform.Row(platform.Button{Text: ch.Title(), URL: link}))
	}
	return kb
}

// Join answers a join button with a single-use link edited into the pressed message.
func (s *Service) Join(ctx context.Context, callbackID string, origin platform.MessageRef, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return s.reject(ctx, callbackID, payload)
	}
	ch, ok := s.opts.Channels.Lookup(id)
	if !ok {
		return s.reject(ctx, callbackID, payload)
	}

	link, err := s.links.PersonalLink(ctx, ch.ID)
	if err != nil {
		_ = s.messenger.Answer(ctx, callbackID, "Could not create a link right now, please try later.", true)
		return fmt.Errorf("welcome: personal link: %w", err)
	}
	_ = s.messenger.Answer(ctx, callbackID, "", false)

	msg := platform.Text{
		Body: fmt.Sprintf("Your personal link to <b>%s</b> is ready.\nIt is valid for a single join.",
			format.EscapeHTML(ch.Label)),
		Mode:     platform.ModeHTML,
		Keyboard: platform.Keyboard{platform.Row(platform.Button{Text: ch.Title(), URL: link})},
	}
	if err := s.messenger.Edit(ctx, origin, msg); err != nil {
		return fmt.Errorf("welcome: edit join message: %w", err)
	}
	return nil
}

func (s *Service) reject(ctx context.Context, callbackID, payload string) error {
	logger.Warn(ctx, component, "join.unknown_channel", slog.String("payload", payload))
	return s.messenger.Answer(ctx, callbackID, "This channel is not available.", true)
}
