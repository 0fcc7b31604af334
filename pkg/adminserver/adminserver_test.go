package adminserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novaria-game/core/pkg/kernel"
	"github.com/novaria-game/core/pkg/materials"
	"github.com/novaria-game/core/pkg/motion"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	k := kernel.New(kernel.Config{
		Materials:      materials.New(),
		MotionSettings: motion.DefaultSettings(),
		Authority:      kernel.Authoritative,
	}, nil, nil)
	if err := k.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	s := New(Config{Addr: ":0"}, k, prometheus.NewRegistry(), nil)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSampleMetricsDoesNotPanic(t *testing.T) {
	s, _ := newTestServer(t)
	state := NewCounterState()
	s.SampleMetrics(state)
	s.SampleMetrics(state)
}
