package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/communitybot/core/config"
)

const (
	RunModeWebhook  = coreconfig.RunModeWebhook
	RunModeLongpoll = coreconfig.RunModeLongpoll

	// DefaultLongPollTimeout applies when no timeout is configured.
	DefaultLongPollTimeout = 10 * time.Second
)

type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
	// Secret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token; requests
	// without it are rejected.
	Secret string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
	// AllowedUpdates lists the update kinds to receive. chat_member is only
	// delivered when listed.
	AllowedUpdates []string
}

// LongPollTimeout resolves the effective long-poll timeout.
func (o PollerOptions) LongPollTimeout() time.Duration {
	if o.LongPollTimeoutSeconds > 0 {
		return time.Duration(o.LongPollTimeoutSeconds) * time.Second
	}
	return DefaultLongPollTimeout
}

func (o PollerOptions) webhook() bool {
	return strings.EqualFold(strings.TrimSpace(o.RunMode), RunModeWebhook)
}

// BuildPoller returns a webhook listener in webhook mode and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if !opts.webhook() {
		return &tele.LongPoller{
			Timeout:        opts.LongPollTimeout(),
			AllowedUpdates: opts.AllowedUpdates,
		}
	}
	wh := opts.Webhook
	return &tele.Webhook{
		Listen:         net.JoinHostPort(strings.TrimSpace(wh.Listen), strconv.Itoa(wh.Port)),
		Endpoint:       &tele.WebhookEndpoint{PublicURL: wh.URL},
		SecretToken:    wh.Secret,
		AllowedUpdates: opts.AllowedUpdates,
	}
}
