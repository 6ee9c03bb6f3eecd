package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/backkem/citp/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	session.NewMetrics(reg, "session")

	status := session.Status{State: "Discover", SourceKey: 7}
	srv := httptest.NewServer(newRouter(reg, func() any { return status }))
	defer srv.Close()

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		if err != nil {
			t.Fatalf("GET /status error = %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var got session.Status
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got.State != "Discover" || got.SourceKey != 7 {
			t.Errorf("status = %+v", got)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "citp_session_state") {
			t.Errorf("metrics output lacks citp_session_state:\n%s", body)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}
