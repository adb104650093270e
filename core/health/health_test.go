package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	router := NewRouter(
		Check{Name: "db", Fn: func(context.Context) error { return nil }},
		Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "fail" || body.Checks["db"] != "ok" || body.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyzAllHealthy(t *testing.T) {
	router := NewRouter(Check{Name: "db", Fn: func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStartServesAndShutsDown(t *testing.T) {
	srv, err := Start(Config{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	disabled, err := Start(Config{})
	if err != nil || disabled != nil {
		t.Fatalf("Start(disabled) = %v, %v", disabled, err)
	}
	if err := disabled.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}
