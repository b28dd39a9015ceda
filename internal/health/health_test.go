package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dskow/tripwatch/internal/monitor"
)

type fakeStatus struct {
	statuses []monitor.Status
}

func (f *fakeStatus) Statuses() []monitor.Status { return f.statuses }

func serve(t *testing.T, provider StatusProvider, path string) *httptest.ResponseRecorder {
	t.Helper()
	h := New(provider, slog.Default())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLiveness_AlwaysReturns200(t *testing.T) {
	rec := serve(t, &fakeStatus{}, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestReadiness_ReadyWhenNoTargetTripped(t *testing.T) {
	provider := &fakeStatus{statuses: []monitor.Status{
		{Name: "db", Samples: 5, Failures: 1, Threshold: 3},
		{Name: "api", Samples: 0},
	}}
	rec := serve(t, provider, "/ready")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status  string            `json:"status"`
		Targets map[string]string `json:"targets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ready" {
		t.Errorf("expected ready, got %s", body.Status)
	}
	if body.Targets["db"] != "ok" {
		t.Errorf("expected db ok, got %s", body.Targets["db"])
	}
	if body.Targets["api"] != "pending" {
		t.Errorf("expected api pending before first sample, got %s", body.Targets["api"])
	}
}

func TestReadiness_503WhenAnyTargetTripped(t *testing.T) {
	provider := &fakeStatus{statuses: []monitor.Status{
		{Name: "db", Samples: 5, Failures: 1, Threshold: 3},
		{Name: "api", Samples: 5, Failures: 4, Threshold: 3, Tripped: true},
	}}
	rec := serve(t, provider, "/ready")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status  string            `json:"status"`
		Targets map[string]string `json:"targets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "not ready" {
		t.Errorf("expected not ready, got %s", body.Status)
	}
	if body.Targets["api"] != "tripped" {
		t.Errorf("expected api tripped, got %s", body.Targets["api"])
	}
}

func TestReadiness_ReadyWithNoTargets(t *testing.T) {
	rec := serve(t, &fakeStatus{}, "/ready")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with no targets, got %d", rec.Code)
	}
}
