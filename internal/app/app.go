// Package app wires configuration, infrastructure and services into a runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/bootstrap"
	coreconfig "github.com/m3rciful/communitybot/core/config"
	coredatabase "github.com/m3rciful/communitybot/core/database"
	"github.com/m3rciful/communitybot/core/health"
	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/redisdb"
	tg "github.com/m3rciful/communitybot/core/telegram"
	tgsender "github.com/m3rciful/communitybot/core/telegram/sender"
	"github.com/m3rciful/communitybot/core/telegram/state"
	"github.com/m3rciful/communitybot/internal/access"
	"github.com/m3rciful/communitybot/internal/adminmanage"
	"github.com/m3rciful/communitybot/internal/adminpanel"
	"github.com/m3rciful/communitybot/internal/bot"
	"github.com/m3rciful/communitybot/internal/broadcast"
	"github.com/m3rciful/communitybot/internal/config"
	"github.com/m3rciful/communitybot/internal/domain"
	"github.com/m3rciful/communitybot/internal/errreport"
	"github.com/m3rciful/communitybot/internal/invites"
	"github.com/m3rciful/communitybot/internal/membership"
	"github.com/m3rciful/communitybot/internal/platform"
	"github.com/m3rciful/communitybot/internal/store"
	"github.com/m3rciful/communitybot/internal/welcome"
	"github.com/m3rciful/communitybot/migrations"
)

// AllowedUpdates are the update kinds requested from Telegram.
var AllowedUpdates = []string{"message", "callback_query", coreconfig.UpdateChatMember}

// App owns the infrastructure of one bot process.
type App struct {
	cfg    *config.Config
	infra  *bootstrap.Result
	store  *store.Store
	health *health.Server
}

// New bootstraps logger, database, migrations, Redis and the admin seed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Redis:      cfg.Redis,
		Migrations: migrations.FS,
		Seeders: []bootstrap.NamedSeeder{
			{Name: "seed_admins", Seeder: SeedAdmins(cfg.Bot.SeedAdmins)},
		},
	})
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, infra: infra, store: store.New(infra.DB)}, nil
}

// SeedAdmins inserts the configured admins; existing rows are kept.
func SeedAdmins(ids []int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, infra *bootstrap.Result) error {
		s := store.New(infra.DB)
		for _, id := range ids {
			if err := s.AddAdmin(ctx, id); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("seed admin %d: %w", id, err)
			}
		}
		return nil
	})
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	return a.infra.Close()
}

// Services builds every feature on top of m and n. botID tells bot-issued invite links apart.
func (a *App) Services(m platform.Messenger, n platform.Notifier, botID int64) bot.Services {
	cfg := a.cfg
	ttl := cfg.Bot.ConversationTimeout()
	policy := access.New(cfg.Telegram.SuperAdminID, a.store)

	panel := adminpanel.New(adminpanel.Deps{
		Sessions:  sessions[adminpanel.Session](a.infra.Redis, cfg.Redis, adminpanel.Name, ttl),
		Store:     a.store,
		Resync:    membership.NewSyncer(a.store, cfg.Bot.Channels, m),
		Broadcast: broadcast.New(m, cfg.Bot.BroadcastInterval()),
		Messenger: m,
		Channels:  cfg.Bot.Channels,
		Authorize: policy.IsAuthorized,
	})
	manage := adminmanage.New(adminmanage.Deps{
		Sessions:  sessions[adminmanage.Session](a.infra.Redis, cfg.Redis, adminmanage.Name, ttl),
		Admins:    a.store,
		Messenger: m,
		Authorize: policy.IsSuperAdmin,
	})

	var cache invites.Cache = invites.NewMemoryCache()
	if a.infra.Redis != nil {
		cache = invites.NewRedisCache(a.infra.Redis, cfg.Redis.Prefix())
	}

	return bot.Services{
		Policy: policy,
		Welcome: welcome.New(a.store, invites.New(m, cache), m, welcome.Options{
			Channels: cfg.Bot.Channels,
			Personal: cfg.Bot.PersonalInviteLinks,
		}),
		Panel:    panel,
		Manage:   manage,
		Tracker:  membership.NewTracker(a.store, cfg.Bot.Channels, n),
		Reporter: errreport.New(policy, n, panel, manage),
		BotID:    botID,
	}
}

func sessions[T any](client *goredis.Client, cfg redisdb.Config, name string, ttl time.Duration) state.Store[T] {
	if client == nil {
		return state.NewMemoryStore[T](ttl)
	}
	return state.NewRedisStore[T](client, cfg.Prefix(), name, ttl)
}

// TelegramRunOptions builds the bot, its routes and the health server hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	var handlers *bot.Handlers
	b, err := tg.NewBot(&a.cfg.Config, tg.BotOptions{
		AllowedUpdates: AllowedUpdates,
		OnError: func(err error, c tele.Context) {
			if handlers != nil {
				handlers.OnError(err, c)
			}
		},
	})
	if err != nil {
		return tg.RunOptions{}, err
	}

	dispatcher := tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2, PerSecond: 25})
	messenger := bot.NewMessenger(b)
	var botID int64
	if b.Me != nil {
		botID = b.Me.ID
	}
	handlers = bot.New(a.Services(messenger, bot.NewNotifier(messenger, dispatcher), botID))

	reg := tg.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Bot:         b,
		Dispatcher:  dispatcher,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      handlers.Routes(reg),
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(_ context.Context, _ tg.Runtime) error {
	srv, err := health.Start(a.cfg.Health, a.checks()...)
	if err != nil {
		return fmt.Errorf("app: health server: %w", err)
	}
	a.health = srv
	logger.Info(context.Background(), "app", "bot.started",
		slog.Int("channels", len(a.cfg.Bot.Channels)),
		slog.Bool("redis", a.infra.Redis != nil),
		slog.Bool("personal_links", a.cfg.Bot.PersonalInviteLinks),
	)
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	return a.health.Shutdown(ctx)
}

func (a *App) checks() []health.Check {
	checks := []health.Check{{
		Name: "db",
		Fn:   func(ctx context.Context) error { return coredatabase.Ping(ctx, a.infra.DB) },
	}}
	if a.infra.Redis != nil {
		checks = append(checks, health.Check{
			Name: "redis",
			Fn:   func(ctx context.Context) error { return redisdb.Ping(ctx, a.infra.Redis) },
		})
	}
	return checks
}
