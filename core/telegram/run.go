package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/communitybot/core/config"
	"github.com/m3rciful/communitybot/core/logger"
	tgsender "github.com/m3rciful/communitybot/core/telegram/sender"
)

// stopTimeout bounds OnStop; the run context is already cancelled by then.
const stopTimeout = 10 * time.Second

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds Handler to Endpoint (a string, tele.OnText, a *tele.Btn ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// BotOptions tunes the telebot instance created by NewBot.
type BotOptions struct {
	AllowedUpdates []string
	// OnError receives handler errors and recovered panics.
	OnError func(error, tele.Context)
	// Offline skips the getMe call; used by tests.
	Offline bool
}

// NewBot creates a bot whose poller and HTTP client follow cfg.
func NewBot(cfg *coreconfig.Config, opts BotOptions) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	po := PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
			Secret: cfg.Webhook.Secret,
		},
		AllowedUpdates: opts.AllowedUpdates,
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  BuildPoller(po),
		Client:  BuildHTTPClient(po.LongPollTimeout()),
		OnError: opts.OnError,
		Offline: opts.Offline,
	})
	if err != nil {
		// telebot echoes the request URL, which carries the token.
		return nil, fmt.Errorf("telegram: bot initialization failed: %s", logger.RedactToken(err.Error()))
	}
	return b, nil
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Bot is used as is when set; otherwise one is built from Config and BotOptions.
	Bot        *tele.Bot
	BotOptions BotOptions

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool
	DisableCommandMenu    bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram wires the bot and serves updates until ctx is done or the poller
// exits. OnStop always runs once OnStart succeeded; the dispatcher is closed last.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := prepare(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Dispatcher.Close()

	bind(ctx, rt, opts)
	if !opts.DisableCommandMenu {
		InitBotCommands(rt.Bot, rt.Registry, opts.Config.Telegram.SuperAdminID)
	}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, rt.Bot)

	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func prepare(ctx context.Context, opts RunOptions) (Runtime, error) {
	if opts.Config == nil {
		return Runtime{}, fmt.Errorf("telegram: nil config provided")
	}
	rt := Runtime{Bot: opts.Bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}

	start := time.Now()
	if rt.Bot == nil {
		b, err := NewBot(opts.Config, opts.BotOptions)
		if err != nil {
			return Runtime{}, err
		}
		rt.Bot = b
	}
	logMode(ctx, rt.Bot, time.Since(start))

	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if lp, ok := rt.Bot.Poller.(*tele.LongPoller); ok && lp != nil && !opts.DisableWebhookCleanup {
		dropWebhook(ctx, rt.Bot)
	}
	return rt, nil
}

func logMode(ctx context.Context, b *tele.Bot, took time.Duration) {
	attrs := []slog.Attr{slog.Duration("duration", logger.RoundMS(took))}
	switch p := b.Poller.(type) {
	case *tele.Webhook:
		publicURL := ""
		if p.Endpoint != nil {
			publicURL = p.Endpoint.PublicURL
		}
		attrs = append(attrs,
			slog.String("mode", RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", publicURL),
			slog.String("allowed_updates", strings.Join(p.AllowedUpdates, ",")),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", RunModeLongpoll),
			slog.Int("timeout_seconds", int(p.Timeout/time.Second)),
			slog.String("allowed_updates", strings.Join(p.AllowedUpdates, ",")),
		)
	default:
		attrs = append(attrs, slog.String("mode", fmt.Sprintf("%T", b.Poller)))
	}
	logger.Info(ctx, "tg", "mode", attrs...)
}

// dropWebhook removes a webhook left over from an earlier deployment, without which
// getUpdates is refused.
func dropWebhook(ctx context.Context, b *tele.Bot) {
	if err := b.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
}

func bind(ctx context.Context, rt Runtime, opts RunOptions) {
	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		rt.Bot.Use(mw.Use)
		names = append(names, mw.Name)
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint == nil || r.Handler == nil {
			continue
		}
		rt.Bot.Handle(r.Endpoint, r.Handler)
		routes++
	}
	logger.Info(ctx, "tg.wire", "routes.bound",
		slog.String("middlewares", strings.Join(names, ",")),
		slog.Int("routes", routes),
		slog.Int("callbacks", len(rt.Registry.ListCallbacks())),
	)
}

// serve blocks in bot.Start until ctx is done or the poller gives up.
func serve(ctx context.Context, b *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()
	select {
	case <-ctx.Done():
		b.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}
