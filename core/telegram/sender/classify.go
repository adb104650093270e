package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/telegram/netutil"
)

// classifyError buckets a send failure into a short err_code for dashboards.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := netutil.FloodWait(err); ok {
		return "flood"
	}

	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		tlsErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}

	switch code := statusOf(err); {
	case code >= 500:
		return "http_5xx"
	case code == http.StatusForbidden:
		// Blocked by the user or removed from the chat; common during broadcasts.
		return "forbidden"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusOf recovers the HTTP status of a Bot API error. Errors telebot does not
// type still end in "(code)".
func statusOf(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}
