package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

var errNoWriter = errors.New("logger: writer not initialized")

type field struct {
	key string
	val any
}

// structuredHandler renders records as one flat line per event. Attributes bound with
// WithAttrs are flattened once, under the groups open at that moment.
type structuredHandler struct {
	level  slog.Leveler
	out    *asyncWriter
	enc    encoder
	preset []field
	group  string
}

func newStructuredHandler(out *asyncWriter, level slog.Leveler, enc encoder) *structuredHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	if enc == nil {
		enc = jsonEncoder{order: defaultKeyOrder}
	}
	return &structuredHandler{level: level, out: out, enc: enc}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return errNoWriter
	}
	rec := make(map[string]any, len(h.preset)+r.NumAttrs()+8)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["ts_unix_nano"] = ts.UnixNano()

	for _, f := range h.preset {
		rec[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range flatten(h.group, a) {
			rec[f.key] = f.val
		}
		return true
	})
	for _, f := range metaOf(ctx).fields() {
		if _, set := rec[f.key]; !set {
			rec[f.key] = f.val
		}
	}
	finish(rec, r)

	line, err := h.enc.encode(rec)
	if err != nil {
		return err
	}
	return h.out.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = append([]field(nil), h.preset...)
	for _, a := range attrs {
		clone.preset = append(clone.preset, flatten(h.group, a)...)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

// finish fills the mandatory keys and normalizes enumerations.
func finish(rec map[string]any, r slog.Record) {
	rec["level"] = normalizeLevel(r.Level.String())

	if rid, _ := rec["rid"].(string); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, set := rec["rid_full"]; !set {
				rec["rid_full"] = rid
			}
			rec["rid"] = short
		}
	}
	if ev, _ := rec["event"].(string); ev == "" {
		rec["event"] = r.Message
		if r.Message == "" {
			rec["event"] = "unknown"
		}
	}
	if c, _ := rec["component"].(string); c == "" {
		rec["component"] = "app"
	}
	if s, ok := rec["status"].(string); ok {
		rec["status"] = normalizeStatus(s)
	}
	if o, ok := rec["outcome"].(string); ok {
		if norm, valid := normalizeOutcome(o); valid {
			rec["outcome"] = norm
		} else {
			delete(rec, "outcome")
		}
	}
	for k, v := range rec {
		if s, ok := v.(string); ok && s == "" {
			delete(rec, k)
		}
	}
}

func flatten(prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		key := prefix
		if a.Key != "" {
			key = joinKey(prefix, a.Key)
		}
		var out []field
		for _, child := range a.Value.Group() {
			out = append(out, flatten(key, child)...)
		}
		return out
	}
	if a.Key == "" {
		return nil
	}
	key, val, ok := convert(joinKey(prefix, a.Key), a.Value)
	if !ok {
		return nil
	}
	return []field{{key, val}}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// convert maps an slog value onto a JSON-friendly scalar. Durations are always
// rendered as milliseconds under a "_ms" key.
func convert(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, clean(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, clean(x.Error()), true
	case string:
		return key, clean(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, clean(x.String()), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func clean(s string) string {
	return RedactToken(strings.TrimSpace(s))
}

// durationKey renames duration attributes so every rendered value is in milliseconds.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}
