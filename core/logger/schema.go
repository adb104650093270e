package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

var outcomes = map[string]bool{"ok": true, "fail": true, "cancelled": true, "rate_limited": true}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, outcomes[outcome]
}

// defaultKeyOrder puts identity and correlation first, then the bot's domain counters,
// then transport and error details.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "run_id", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"conversation", "state", "action", "cb_key", "outcome", "duration_ms",
	"messages", "kb",
	"channel_id", "admin_id", "target", "items", "recipients", "sent", "failed", "count",
	"subscribed", "via_bot_link", "invite",
	"payload", "username", "mode", "listen", "public_url", "http_code",
	"driver", "db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}
