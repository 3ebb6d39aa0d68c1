package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzOK(t *testing.T) {
	s := New(":0", nil)
	s.AddCheck("db", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestHealthzFailingCheck(t *testing.T) {
	s := New(":0", nil)
	s.AddCheck("db", func(context.Context) error { return nil })
	s.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "redis: not ok") || strings.Contains(body, "db: not ok") {
		t.Fatalf("body = %q", body)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run after cancel = %v", err)
	}
}
