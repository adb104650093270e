package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// render logs one record through a fresh handler and returns the written line.
func render(t *testing.T, enc encoder, ctx context.Context, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	emit(slog.New(newStructuredHandler(w, slog.LevelDebug, enc)))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func assertOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx < 0 || idx < pos {
			t.Fatalf("%q missing or out of order in %s", p, line)
		}
		pos = idx
	}
}

func TestKVLineStartsWithIdentityKeys(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := render(t, kvEncoder{order: defaultKeyOrder}, ctx, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "bot"), slog.LevelInfo, "welcome.sent",
			slog.String("cause", "unit"),
			slog.String("status", "OK"),
		)
	})
	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=bot", "event=welcome.sent", "status=ok", "rid=rid-123"}
	if len(tokens) < len(want) {
		t.Fatalf("line too short: %s", line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
	if strings.Contains(line, "ts_unix_nano") {
		t.Fatalf("kv output carries machine keys: %s", line)
	}
}

func TestJSONLineOrderAndCompactRID(t *testing.T) {
	ctx := WithRID(context.Background(), BuildRID(12, 34, 56))
	line := render(t, jsonEncoder{order: defaultKeyOrder}, ctx, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "store"), slog.LevelError, "admin.add_failed",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
		)
	})
	assertOrder(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"store"`, `"event":"admin.add_failed"`,
		`"status":"fail"`, `"rid":"`+CompactRID("12:34:56")+`"`, `"rid_full":"12:34:56"`, `"ts_unix_nano"`, `"err":"boom"`)
}

func TestRunIDDurationAndGroups(t *testing.T) {
	ctx := WithRunID(context.Background(), "bc-1")
	line := render(t, kvEncoder{order: defaultKeyOrder}, ctx, func(l *slog.Logger) {
		l.With("component", "broadcast").WithGroup("album").LogAttrs(ctx, slog.LevelInfo, "broadcast.done",
			slog.Int("sent", 2),
			slog.Duration("duration", 1500*time.Millisecond),
		)
	})
	for _, want := range []string{"component=broadcast", "event=broadcast.done", "run_id=bc-1", "album.sent=2", "album.duration_ms=1500"} {
		if !strings.Contains(line, want) {
			t.Fatalf("want %q in %s", want, line)
		}
	}
}

func TestBotTokenIsRedacted(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-x_9/getUpdates": timeout`)
	line := render(t, kvEncoder{order: defaultKeyOrder}, context.Background(), func(l *slog.Logger) {
		l.Warn("poll.failed", slog.Any("err", err))
	})
	if strings.Contains(line, "AAH-x_9") || !strings.Contains(line, "bot<redacted>/getUpdates") {
		t.Fatalf("token leaked: %s", line)
	}
}

func TestEmptyValuesAndUnknownOutcomeDropped(t *testing.T) {
	line := render(t, kvEncoder{order: defaultKeyOrder}, context.Background(), func(l *slog.Logger) {
		l.Info("", slog.String("username", " "), slog.String("outcome", "maybe"))
	})
	if strings.Contains(line, "username=") || strings.Contains(line, "outcome=") {
		t.Fatalf("unexpected keys: %s", line)
	}
	if !strings.Contains(line, "event=unknown") || !strings.Contains(line, "component=app") {
		t.Fatalf("defaults missing: %s", line)
	}
}

func TestDurationKey(t *testing.T) {
	cases := map[string]string{
		"duration":         "duration_ms",
		"startup_duration": "startup_duration_ms",
		"backoff_ms":       "backoff_ms",
		"delay":            "delay_ms",
	}
	for in, want := range cases {
		if got := durationKey(in); got != want {
			t.Errorf("durationKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContextMetaDoesNotLeakToParent(t *testing.T) {
	parent := WithRID(context.Background(), "a")
	child := WithHandler(WithRID(parent, "b"), "cmd:/start")
	if RIDFrom(parent) != "a" || RIDFrom(child) != "b" || HandlerFrom(parent) != "" {
		t.Fatalf("parent=%q child=%q", RIDFrom(parent), RIDFrom(child))
	}
	if FromContext(child) != L {
		t.Fatalf("context without a logger must fall back to L")
	}
}

func TestTextHelpers(t *testing.T) {
	if got := SanitizeLimit("a\x00bcdé\tf", 5); got != "abcdé" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := CompactRID("not:a:rid"); got != "not:a:rid" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("35:36:-1"); got != "z.10.-1" {
		t.Fatalf("CompactRID = %q", got)
	}
	if s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2); s != "a, b" || !cut {
		t.Fatalf("SummarizeStrings = %q, %v", s, cut)
	}
}
