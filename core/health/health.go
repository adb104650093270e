// Package health serves liveness and readiness probes next to the bot runtime.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/communitybot/core/buildinfo"
	"github.com/m3rciful/communitybot/core/logger"
)

// Config controls the probe listener. An empty Listen disables the server.
type Config struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Check is a named dependency probe used by /readyz.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

type report struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// NewRouter builds the probe routes.
func NewRouter(checks ...Check) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, report{Status: "ok", Version: buildinfo.String()})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
		defer cancel()

		out := report{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				out.Checks[c.Name] = err.Error()
				out.Status = "fail"
				code = http.StatusServiceUnavailable
				logger.HTTP.Warn("readiness check failed",
					slog.String("event", "health.ready"),
					slog.String("check", c.Name),
					slog.String("rid", chimiddleware.GetReqID(req.Context())),
					slog.String("err", err.Error()),
				)
				continue
			}
			out.Checks[c.Name] = "ok"
		}
		writeJSON(w, code, out)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wraps the probe listener lifecycle.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start binds the listener and serves in the background.
// It returns (nil, nil) when the server is disabled.
func Start(cfg Config, checks ...Check) (*Server, error) {
	addr := strings.TrimSpace(cfg.Listen)
	if addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.HTTP.Error("health listen failed",
			slog.String("event", "health.listen"),
			slog.String("listen", addr),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(checks...),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.HTTP.Error("health server stopped",
				slog.String("event", "health.serve"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.HTTP.Info("health server listening",
		slog.String("event", "health.listen"),
		slog.String("listen", ln.Addr().String()),
	)
	return s, nil
}

// Addr reports the bound address.
func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the listener gracefully. It is safe on a nil server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
