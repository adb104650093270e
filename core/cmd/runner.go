// Package cmd is the shared entry point of the bot binaries: flags, config loading,
// signal handling and the Telegram runtime lifecycle.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/communitybot/core/buildinfo"
	coreconfig "github.com/m3rciful/communitybot/core/config"
	"github.com/m3rciful/communitybot/core/logger"
	coretelegram "github.com/m3rciful/communitybot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
// Apps that also implement io.Closer are closed after the runtime stops.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// Name and Args default to os.Args.
	Name string
	Args []string
	// Stdout receives -version output.
	Stdout io.Writer

	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ErrUsage is returned for unparsable command-line flags.
var ErrUsage = errors.New("cmd: invalid arguments")

// Run loads configuration, bootstraps the Telegram app, and starts the bot runtime.
// It blocks until SIGINT/SIGTERM or a fatal runtime error.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return fmt.Errorf("cmd: LoadConfig and Bootstrap are required")
	}
	path, version, err := opts.parse()
	if err != nil {
		return err
	}
	if version {
		_, err := fmt.Fprintln(opts.stdout(), buildinfo.String())
		return err
	}

	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", path, err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: config %s has no core section", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer opts.flushLogs()

	return opts.serve(ctx, cfg)
}

// parse resolves the config path: -config, then the env var, then the default.
func (o Options) parse() (string, bool, error) {
	name, args := o.Name, o.Args
	if name == "" && len(os.Args) > 0 {
		name = os.Args[0]
	}
	if args == nil && len(os.Args) > 1 {
		args = os.Args[1:]
	}
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "path to the YAML config (env "+env+")")
	version := fs.Bool("version", false, "print build information and exit")
	if err := fs.Parse(args); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *version {
		return "", true, nil
	}

	p := *path
	if p == "" {
		p = os.Getenv(env)
	}
	if p == "" {
		p = o.DefaultConfigPath
	}
	if p == "" {
		return "", false, fmt.Errorf("cmd: no config path: pass -config or set %s", env)
	}
	return p, false, nil
}

func (o Options) serve(ctx context.Context, cfg ConfigCarrier) error {
	startedAt := time.Now()
	app, err := o.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	if closer, ok := app.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn(context.Background(), "app", "shutdown.close_failed", slog.String("err", err.Error()))
			}
		}()
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	runOpts.OnStart = announceReady(runOpts.OnStart, startedAt)
	runOpts.OnStop = announceStop(runOpts.OnStop)

	run := o.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func announceReady(next func(context.Context, coretelegram.Runtime) error, startedAt time.Time) func(context.Context, coretelegram.Runtime) error {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		if next != nil {
			if err := next(ctx, rt); err != nil {
				return err
			}
		}
		attrs := []slog.Attr{
			slog.String("build_version", buildinfo.String()),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		}
		if rt.Bot != nil && rt.Bot.Me != nil {
			attrs = append(attrs, slog.String("username", rt.Bot.Me.Username))
		}
		logger.Info(ctx, "app", "ready", attrs...)
		return nil
	}
}

func announceStop(next func(context.Context, coretelegram.Runtime) error) func(context.Context, coretelegram.Runtime) error {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if next == nil {
			return nil
		}
		return next(ctx, rt)
	}
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o Options) flushLogs() {
	shutdown := o.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	if err := shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
}
