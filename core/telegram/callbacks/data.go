// Package callbacks reads and writes the callback_data layout telebot uses:
// "\f<unique>|<payload>".
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	prefix = "\f"
	sep    = "|"
)

// Parse splits cb into its unique key and payload. Payloads may contain further
// separators; data without the telebot prefix is treated as a bare key.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, prefix), sep)
	return strings.TrimSpace(key), payload
}

// Encode is the inverse of Parse.
func Encode(key, payload string) string {
	if payload == "" {
		return prefix + key
	}
	return prefix + key + sep + payload
}

// Key returns the unique key of the callback carried by c, if any.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}
