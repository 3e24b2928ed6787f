package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"duelnet/internal/config"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Simulation: config.SimulationConfig{TickRate: 30, SnapshotRate: 10, PlayerSpeed: 200},
		Network:    config.DefaultNetwork(),
		Spatial:    config.DefaultSpatial(),
		History:    config.DefaultHistory(),
		Server:     config.DefaultServer(),
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := New(testConfig())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketUpgradeAndSnapshotDelivery(t *testing.T) {
	s := New(testConfig())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if s.proto.PeerCount() != 1 {
		t.Fatalf("expected 1 connected peer, got %d", s.proto.PeerCount())
	}

	// Manually trigger a snapshot build (the tick loop isn't running in
	// this test) and confirm the client actually receives framed bytes.
	s.proto.BuildAndSendSnapshots(1000)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected to receive a snapshot message: %v", err)
	}
	if len(data) == 0 || data[0] != msgSnapshot {
		t.Fatalf("expected tagged snapshot message, got %v", data)
	}
}

func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	s := New(testConfig())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial from a disallowed origin to fail")
	}
	if resp != nil && resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 response, got %d", resp.StatusCode)
	}
}
