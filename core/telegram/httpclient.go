package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/communitybot/core/buildinfo"
	"github.com/m3rciful/communitybot/core/telegram/netutil"
)

const (
	dialTimeout   = 5 * time.Second
	tlsTimeout    = 5 * time.Second
	idleTimeout   = 30 * time.Second
	keepAlive     = 30 * time.Second
	headerSlack   = 5 * time.Second
	minClientWait = 30 * time.Second

	transportRetries = 3
	transportBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for every Bot API call. getUpdates holds
// the response for up to pollTimeout, so the header and client deadlines leave
// room for it. Dial failures and timeouts are retried at the transport level.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout <= 0 {
		pollTimeout = DefaultLongPollTimeout
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: pollTimeout + headerSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: max(minClientWait, pollTimeout+2*headerSlack),
		Transport: &retryTransport{
			base:      base,
			retries:   transportRetries,
			backoff:   transportBackoff,
			userAgent: "communitybot/" + buildinfo.Version,
		},
	}
}

type retryTransport struct {
	base      http.RoundTripper
	retries   int
	backoff   time.Duration
	userAgent string
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt > t.retries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		next, ok := rewind(req)
		if !ok {
			return nil, err
		}
		if !sleepCtx(req, netutil.Backoff(err, attempt, t.backoff)) {
			return nil, req.Context().Err()
		}
		req = next
	}
}

// rewind prepares req for another attempt; bodies without GetBody cannot be replayed.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func sleepCtx(req *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-req.Context().Done():
		return false
	case <-t.C:
		return true
	}
}
