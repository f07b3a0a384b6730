package statsock

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrybot/ferry/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerServesSnapshot(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stats.sock")
	stats := core.NewStats()
	stats.CountResponse()
	stats.CountResponse()

	srv := New(sock, stats, testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Shutdown()

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var snap struct {
		UptimeSeconds int64  `json:"uptime_seconds"`
		Uptime        string `json:"uptime"`
		Responses     int64  `json:"responses"`
	}
	if err := json.NewDecoder(conn).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Responses != 2 {
		t.Errorf("responses = %d, want 2", snap.Responses)
	}
	if snap.Uptime == "" {
		t.Error("uptime string is empty")
	}
}

func TestStartClaimsDeadSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stats.sock")
	// A leftover path nobody answers on.
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	srv := New(sock, core.NewStats(), testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() over dead socket: %v", err)
	}
	srv.Shutdown()
}

func TestStartRefusesLiveSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stats.sock")
	stats := core.NewStats()

	first := New(sock, stats, testLogger())
	if err := first.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Shutdown()

	second := New(sock, stats, testLogger())
	if err := second.Start(); err == nil {
		second.Shutdown()
		t.Fatal("second Start() on a live socket succeeded")
	}
}

func TestShutdownRemovesSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stats.sock")
	srv := New(sock, core.NewStats(), testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	srv.Shutdown()
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Errorf("socket still present after Shutdown: %v", err)
	}
}
