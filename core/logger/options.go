package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/m3rciful/communitybot/core/config"
)

// settings is the logging configuration resolved from the config file.
type settings struct {
	level    slog.Level
	kv       bool
	order    []string
	profile  string
	sampleN  int
	sampleD  int
	filePath string
}

func resolve(cfg coreconfig.LoggingConfig) settings {
	s := settings{
		level:   parseLevel(cfg.Level),
		order:   parseOrder(cfg.KeysOrder),
		profile: strings.ToLower(strings.TrimSpace(cfg.Profile)),
	}
	if s.profile == "" {
		s.profile = "prod"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		s.kv = true
	case "json":
	default:
		s.kv = s.profile == "debug" || s.profile == "dev"
	}

	s.sampleN, s.sampleD = 1, 50
	if spec := strings.TrimSpace(cfg.DebugSample); spec != "" {
		s.sampleN, s.sampleD = parseRatioSpec(spec)
	}

	if dir, file := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.BotFile); dir != "" && file != "" {
		s.filePath = filepath.Join(dir, file)
	}
	return s
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func (s settings) encoder() encoder {
	if s.kv {
		return kvEncoder{order: s.order}
	}
	return jsonEncoder{order: s.order}
}

// sinks opens stdout plus the optional log file. A file that cannot be opened is
// reported on stderr and skipped so the bot still starts.
func (s settings) sinks() ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if s.filePath == "" {
		return writers, nil
	}
	f, err := openLogFile(s.filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
