package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adslink/bridge"
	"adslink/config"
	"adslink/logging"
)

type stubSource struct {
	status bridge.Status
}

func (s stubSource) Snapshot() bridge.Status { return s.status }

func newTestServer() *Server {
	source := stubSource{status: bridge.Status{
		State:    "polling",
		Interval: "500ms",
		Groups: []bridge.GroupStatus{
			{Name: "Line1", Topic: "base/seg1/Line1", Publishes: 12},
		},
	}}
	return NewServer(config.WebConfig{Host: "127.0.0.1", Port: 8080}, source, logging.Default())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body decode error: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status bridge.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body decode error: %v", err)
	}
	if status.State != "polling" {
		t.Errorf("State = %q, want polling", status.State)
	}
	if len(status.Groups) != 1 || status.Groups[0].Name != "Line1" {
		t.Errorf("Groups = %+v", status.Groups)
	}
	if status.Groups[0].Publishes != 12 {
		t.Errorf("Publishes = %d, want 12", status.Groups[0].Publishes)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStopBeforeStart(t *testing.T) {
	srv := newTestServer()
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() before Start error: %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
}
