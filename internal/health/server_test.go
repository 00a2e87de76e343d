package health

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postalsys/echoping/internal/metrics"
	"github.com/postalsys/echoping/internal/stats"
)

// mockStatsProvider implements StatsProvider for testing.
type mockStatsProvider struct {
	running bool
	stats   Stats
}

func (m *mockStatsProvider) IsRunning() bool {
	return m.running
}

func (m *mockStatsProvider) Stats() Stats {
	return m.stats
}

func TestNewServer(t *testing.T) {
	cfg := DefaultServerConfig()
	provider := &mockStatsProvider{running: true}

	s := NewServer(cfg, provider)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestServer_handleHealth(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &mockStatsProvider{running: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	body := rec.Body.String()
	if body != "OK\n" {
		t.Errorf("expected body 'OK\\n', got %q", body)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &mockStatsProvider{running: true})

	for _, path := range []string{"/health", "/healthz", "/ready"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestServer_handleHealthz_Running(t *testing.T) {
	start := time.Now().Add(-2 * time.Minute)
	provider := &mockStatsProvider{
		running: true,
		stats: Stats{
			Host:   "example.com",
			Target: "93.184.216.34",
			State:  "AWAITING_REPLY",
			Snapshot: stats.Snapshot{
				Sent:     4,
				Received: 3,
				Min:      10,
				Avg:      15,
				Max:      20,
				Mdev:     4.08,
				Start:    start,
			},
		},
	}
	s := NewServer(DefaultServerConfig(), provider)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", response["status"])
	}
	if response["host"] != "example.com" {
		t.Errorf("expected host example.com, got %v", response["host"])
	}
	if response["state"] != "AWAITING_REPLY" {
		t.Errorf("expected state AWAITING_REPLY, got %v", response["state"])
	}
	if int(response["packets_transmitted"].(float64)) != 4 {
		t.Errorf("expected packets_transmitted 4, got %v", response["packets_transmitted"])
	}
	if int(response["packets_received"].(float64)) != 3 {
		t.Errorf("expected packets_received 3, got %v", response["packets_received"])
	}
	if int(response["packet_loss_percent"].(float64)) != 25 {
		t.Errorf("expected packet_loss_percent 25, got %v", response["packet_loss_percent"])
	}
	if response["rtt_avg_ms"].(float64) != 15 {
		t.Errorf("expected rtt_avg_ms 15, got %v", response["rtt_avg_ms"])
	}
	if response["started"] != "2 minutes ago" {
		t.Errorf("expected started '2 minutes ago', got %v", response["started"])
	}
}

func TestServer_handleHealthz_NotStarted(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &mockStatsProvider{running: true})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := response["started"]; ok {
		t.Errorf("unexpected started field: %v", response["started"])
	}
	if int(response["packet_loss_percent"].(float64)) != 0 {
		t.Errorf("expected packet_loss_percent 0, got %v", response["packet_loss_percent"])
	}
}

func TestServer_handleHealthz_NotRunning(t *testing.T) {
	s := NewServer(DefaultServerConfig(), &mockStatsProvider{running: false})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestServer_handleReady(t *testing.T) {
	tests := []struct {
		name     string
		provider StatsProvider
		wantCode int
		wantBody string
	}{
		{"ready", &mockStatsProvider{running: true}, http.StatusOK, "READY\n"},
		{"not running", &mockStatsProvider{running: false}, http.StatusServiceUnavailable, "NOT READY\n"},
		{"nil provider", nil, http.StatusServiceUnavailable, "NOT READY\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(DefaultServerConfig(), tt.provider)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()

			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)
	m.RecordSent(1)
	m.RecordReply(12 * time.Millisecond)

	cfg := DefaultServerConfig()
	cfg.Gatherer = reg
	s := NewServer(cfg, &mockStatsProvider{running: true})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"echoping_packets_sent_total 1",
		"echoping_packets_received_total 1",
		"echoping_rtt_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := ServerConfig{
		Address:      "127.0.0.1:0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	s := NewServer(cfg, &mockStatsProvider{running: true})

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if !s.IsRunning() {
		t.Error("expected server to be running")
	}

	addr := s.Address()
	if addr == nil {
		t.Fatal("expected non-nil address")
	}

	// Use retry loop to handle race between Start() and Serve()
	var resp *http.Response
	var err error
	for i := 0; i < 10; i++ {
		time.Sleep(10 * time.Millisecond)
		resp, err = http.Get("http://" + addr.String() + "/health")
		if err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK\n" {
		t.Errorf("expected body 'OK\\n', got %q", body)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("failed to stop: %v", err)
	}

	if s.IsRunning() {
		t.Error("expected server to be stopped")
	}
}

func TestServer_DoubleStop(t *testing.T) {
	s := NewServer(ServerConfig{Address: "127.0.0.1:0"}, &mockStatsProvider{running: true})

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// Stop twice should not error
	if err := s.Stop(); err != nil {
		t.Errorf("first stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.Address() != nil {
		t.Errorf("Address() = %v, want nil", s.Address())
	}
}
