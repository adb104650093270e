// Package netutil decides which Bot API failures are transient and how long to
// wait before trying again.
package netutil

import (
	"context"
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"
)

// MaxBackoff caps the computed delay; flood waits requested by Telegram are not capped.
const MaxBackoff = 30 * time.Second

// ShouldRetry reports whether err is transient: a timeout, a failed dial, Telegram
// flood control or a 5xx answer. Cancellation is never retried.
func ShouldRetry(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case isFlood(err):
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FloodWait returns the retry_after delay of a Telegram 429 answer.
func FloodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return time.Duration(floodPtr.RetryAfter) * time.Second, true
	}
	return 0, false
}

func isFlood(err error) bool {
	_, ok := FloodWait(err)
	return ok
}

// Backoff returns the delay before retry number attempt (1-based): the flood wait
// when Telegram asked for one, otherwise base doubled per attempt up to MaxBackoff.
func Backoff(err error, attempt int, base time.Duration) time.Duration {
	if d, ok := FloodWait(err); ok && d > 0 {
		return d
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}
