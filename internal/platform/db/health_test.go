package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, h echo.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := runHealth(t, HealthHandler(nil, Check{Name: "mongo", Ping: ok}, Check{Name: "redis", Ping: ok}))

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["mongo"] != "ok" || checks["redis"] != "ok" {
		t.Errorf("unexpected checks %v", checks)
	}
	if _, ok := body["pool"]; ok {
		t.Error("pool stats must be omitted without a pool")
	}
}

func TestHealthHandler_FailingCheck(t *testing.T) {
	code, body := runHealth(t, HealthHandler(nil,
		Check{Name: "mongo", Ping: func(context.Context) error { return nil }},
		Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	))

	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["redis"] != "connection refused" {
		t.Errorf("expected redis failure, got %v", checks["redis"])
	}
}

func TestHealthHandler_NoChecks(t *testing.T) {
	code, _ := runHealth(t, HealthHandler(nil))
	if code != http.StatusOK {
		t.Errorf("expected 200 with no dependencies, got %d", code)
	}
}

func TestPoolStats_JSONTags(t *testing.T) {
	raw, err := json.Marshal(PoolStats{TotalConns: 3, MaxConns: 20, AcquireDuration: "250ms", Healthy: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing json key %s", key)
		}
	}
}
