// Package logger is the process-wide structured logger. Records are flat key/value
// lines (JSON or logfmt) written asynchronously to stdout and an optional file.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/communitybot/core/buildinfo"
	coreconfig "github.com/m3rciful/communitybot/core/config"
)

var (
	initOnce sync.Once

	mu      sync.Mutex
	out     *asyncWriter
	closers []io.Closer

	level        slog.LevelVar
	debugSampler = newRatioSampler(1, 50)
	trace        bool

	// L is the base logger.
	L *slog.Logger

	RDS  *slog.Logger // Redis
	HTTP *slog.Logger // health server
)

func init() {
	// Component loggers must be usable before InitLogger (tests, tooling).
	L = slog.Default()
	bindComponents()
}

// InitLogger installs the structured logger described by cfg. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		var s settings
		if cfg != nil {
			s = resolve(cfg.Logging)
		} else {
			s = resolve(coreconfig.LoggingConfig{})
		}
		level.Set(s.level)
		debugSampler.Set(s.sampleN, s.sampleD)
		trace = envFlag("TRACE") || envFlag("LOG_TRACE")

		writers, files := s.sinks()
		mu.Lock()
		out = newAsyncWriter(writers, 64*1024)
		closers = files
		mu.Unlock()

		L = slog.New(newStructuredHandler(out, &level, s.encoder()))
		slog.SetDefault(L)
		bindComponents()

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

func bindComponents() {
	RDS = Component("redis")
	HTTP = Component("http.health")
}

// Shutdown flushes pending lines and closes the log file. Later calls are no-ops.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return nil
	}
	errs := []error{out.Flush(), out.Close()}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	out, closers = nil, nil
	return errors.Join(errs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes a record with "event" set; logg defaults to the logger in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug record should be written.
// TRACE=1 in the environment disables sampling.
func ShouldSampleDebug() bool {
	return trace || debugSampler.Allow()
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
