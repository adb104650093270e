// Package config holds the application configuration layered on top of the core settings.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/communitybot/core/config"
	coredatabase "github.com/m3rciful/communitybot/core/database"
	"github.com/m3rciful/communitybot/core/health"
	"github.com/m3rciful/communitybot/core/redisdb"
	"github.com/m3rciful/communitybot/internal/domain"
)

const (
	DefaultBroadcastInterval   = 100 * time.Millisecond
	DefaultConversationTimeout = 600 * time.Second
)

// ChannelList decodes CHANNELS="id|label|icon;id|label|icon".
type ChannelList []domain.Channel

// Decode implements envconfig.Decoder.
func (l *ChannelList) Decode(value string) error {
	var out ChannelList
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("channel %q: invalid id: %w", entry, err)
		}
		ch := domain.Channel{ID: id}
		if len(parts) > 1 {
			ch.Label = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			ch.Icon = strings.TrimSpace(parts[2])
		}
		out = append(out, ch)
	}
	*l = out
	return nil
}

// Lookup finds a configured channel by id.
func (l ChannelList) Lookup(id int64) (domain.Channel, bool) {
	for _, ch := range l {
		if ch.ID == id {
			return ch, true
		}
	}
	return domain.Channel{}, false
}

// BotConfig is the community-specific part of the configuration.
type BotConfig struct {
	Channels                   ChannelList `yaml:"channels" envconfig:"CHANNELS"`
	BroadcastIntervalMS        int         `yaml:"broadcast_interval_ms" envconfig:"BROADCAST_INTERVAL_MS"`
	ConversationTimeoutSeconds int         `yaml:"conversation_timeout_seconds" envconfig:"CONVERSATION_TIMEOUT_SECONDS"`
	PersonalInviteLinks        bool        `yaml:"personal_invite_links" envconfig:"PERSONAL_INVITE_LINKS"`
	SeedAdmins                 []int64     `yaml:"seed_admins" envconfig:"SEED_ADMINS"`
}

// BroadcastInterval is the pause between two deliveries of a broadcast.
func (b BotConfig) BroadcastInterval() time.Duration {
	if b.BroadcastIntervalMS <= 0 {
		return DefaultBroadcastInterval
	}
	return time.Duration(b.BroadcastIntervalMS) * time.Millisecond
}

// ConversationTimeout is the inactivity window after which a dialogue expires.
func (b BotConfig) ConversationTimeout() time.Duration {
	if b.ConversationTimeoutSeconds <= 0 {
		return DefaultConversationTimeout
	}
	return time.Duration(b.ConversationTimeoutSeconds) * time.Second
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Redis    redisdb.Config      `yaml:"redis"`
	Health   health.Config       `yaml:"health"`
	Bot      BotConfig           `yaml:"bot"`
}

// CoreConfig exposes the embedded core settings to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults. Problems from every
// section are reported together; each wraps coreconfig.ErrInvalid.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return coreconfig.Invalidf("nil config")
	}
	return errors.Join(
		coreconfig.Normalize(&cfg.Config),
		cfg.Database.Validate(),
		cfg.Bot.normalize(),
	)
}

func (b *BotConfig) normalize() error {
	var errs []error
	seen := make(map[int64]struct{}, len(b.Channels))
	for i, ch := range b.Channels {
		if ch.ID == 0 {
			errs = append(errs, coreconfig.Invalidf("bot.channels[%d]: id is required", i))
		}
		if strings.TrimSpace(ch.Label) == "" {
			errs = append(errs, coreconfig.Invalidf("bot.channels[%d]: label is required", i))
		}
		if _, dup := seen[ch.ID]; dup && ch.ID != 0 {
			errs = append(errs, coreconfig.Invalidf("bot.channels[%d]: duplicate channel id %d", i, ch.ID))
		}
		seen[ch.ID] = struct{}{}
	}
	for _, id := range b.SeedAdmins {
		if id <= 0 {
			errs = append(errs, coreconfig.Invalidf("bot.seed_admins: invalid user id %d", id))
		}
	}

	switch {
	case b.BroadcastIntervalMS < 0:
		errs = append(errs, coreconfig.Invalidf("bot.broadcast_interval_ms must be >= 0"))
	case b.BroadcastIntervalMS == 0:
		b.BroadcastIntervalMS = int(DefaultBroadcastInterval / time.Millisecond)
	}
	switch {
	case b.ConversationTimeoutSeconds < 0:
		errs = append(errs, coreconfig.Invalidf("bot.conversation_timeout_seconds must be >= 0"))
	case b.ConversationTimeoutSeconds == 0:
		b.ConversationTimeoutSeconds = int(DefaultConversationTimeout / time.Second)
	}
	return errors.Join(errs...)
}
