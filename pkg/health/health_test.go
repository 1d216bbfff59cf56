package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func request(t *testing.T, server *Server, path string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func TestHealthReportsDatabaseAndUptime(t *testing.T) {
	server := New(&fakePinger{}, "1.2.3")

	code, body := request(t, server, "/health")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Version   string `json:"version"`
		Database  struct {
			Status         string `json:"status"`
			ResponseTimeMS int64  `json:"response_time_ms"`
		} `json:"database"`
		UptimeSeconds int64 `json:"uptime_seconds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal health payload: %v", err)
	}
	if payload.Status != "healthy" {
		t.Fatalf("expected healthy status, got %q", payload.Status)
	}
	if payload.Version != "1.2.3" {
		t.Fatalf("unexpected version %q", payload.Version)
	}
	if payload.Database.Status != "healthy" {
		t.Fatalf("expected healthy database, got %q", payload.Database.Status)
	}
	if payload.Database.ResponseTimeMS < 0 {
		t.Fatalf("negative response time: %d", payload.Database.ResponseTimeMS)
	}
	if payload.UptimeSeconds < 0 {
		t.Fatalf("negative uptime: %d", payload.UptimeSeconds)
	}
	if payload.Timestamp == "" {
		t.Fatal("expected a timestamp")
	}
}

func TestHealthDegradesWhenStoreUnreachable(t *testing.T) {
	server := New(&fakePinger{err: errors.New("connection refused")}, "dev")

	code, body := request(t, server, "/health")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}

	var payload struct {
		Status   string `json:"status"`
		Database struct {
			Status string `json:"status"`
		} `json:"database"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal health payload: %v", err)
	}
	if payload.Status != "unhealthy" || payload.Database.Status != "unhealthy" {
		t.Fatalf("expected unhealthy report, got %+v", payload)
	}
}

func TestLivenessIgnoresStore(t *testing.T) {
	server := New(&fakePinger{err: errors.New("down")}, "dev")

	code, body := request(t, server, "/health/live")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var word string
	if err := json.Unmarshal(body, &word); err != nil {
		t.Fatalf("unmarshal liveness payload: %v", err)
	}
	if word != "alive" {
		t.Fatalf("expected alive, got %q", word)
	}
}

func TestReadinessFollowsStore(t *testing.T) {
	pinger := &fakePinger{}
	server := New(pinger, "dev")

	code, body := request(t, server, "/health/ready")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var word string
	if err := json.Unmarshal(body, &word); err != nil {
		t.Fatalf("unmarshal readiness payload: %v", err)
	}
	if word != "ready" {
		t.Fatalf("expected ready, got %q", word)
	}

	pinger.err = errors.New("down")
	code, _ = request(t, server, "/health/ready")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when store is down, got %d", code)
	}
}
