// Package config holds the settings shared by every bot binary and the YAML plus
// environment loader used for the bot-specific sections as well.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure reported by Normalize.
var ErrInvalid = errors.New("config: invalid")

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateChatMember  = "chat_member"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateChatMember, UpdateInlineQuery}

// TelegramConfig is the "telegram" section. Env keys resolve as TELEGRAM_<tag> with
// the bare tag as fallback.
type TelegramConfig struct {
	Token        string `yaml:"token" envconfig:"BOT_TOKEN"`
	SuperAdminID int64  `yaml:"super_admin_id" envconfig:"SUPER_ADMIN_ID"`
	RunMode      string `yaml:"run_mode" envconfig:"RUN_MODE"`
	// 0 selects the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"LONGPOLL_TIMEOUT_SECONDS"`
}

type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// LoggingConfig is read by the logger package; empty values fall back to its defaults.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile is "debug", "dev" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// LoadInto decodes the YAML file at path into dst and overlays environment variables.
// A missing file is tolerated so that deployments can rely on the environment alone.
func LoadInto(path string, dst any) error {
	if dst == nil {
		return errors.New("config: nil destination")
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Load reads the core configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and canonicalizes run mode and update kinds. All problems
// are reported at once; each wraps ErrInvalid.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	tgErr := cfg.Telegram.normalize()
	return errors.Join(tgErr, cfg.Webhook.validate(cfg.Telegram.RunMode), cfg.RateLimit.normalize())
}

// Invalidf formats a validation failure wrapping ErrInvalid.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func (t *TelegramConfig) normalize() error {
	var errs []error
	t.Token = strings.TrimSpace(t.Token)
	if t.Token == "" {
		errs = append(errs, Invalidf("telegram token is required"))
	}
	if t.SuperAdminID <= 0 {
		errs = append(errs, Invalidf("telegram.super_admin_id must be a positive Telegram user id"))
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, Invalidf("telegram.longpoll_timeout_seconds must be >= 0"))
	}

	switch rm := strings.ToLower(strings.TrimSpace(t.RunMode)); rm {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = rm
	default:
		errs = append(errs, Invalidf("telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode))
	}
	return errors.Join(errs...)
}

func (w WebhookConfig) validate(runMode string) error {
	if runMode != RunModeWebhook {
		return nil
	}
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, Invalidf("webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, Invalidf("webhook.listen is required in webhook mode"))
	}
	if w.Port <= 0 {
		errs = append(errs, Invalidf("webhook.port must be > 0 in webhook mode"))
	}
	return errors.Join(errs...)
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 || r.Burst < 0 {
		return Invalidf("rate_limit.interval_ms and rate_limit.burst must be >= 0")
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !slices.Contains(updateKinds, key) {
			return Invalidf("rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		}
		kinds = append(kinds, key)
	}
	r.ExcludeUpdates = kinds
	return nil
}
