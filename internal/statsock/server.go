// Package statsock exposes the lifecycle counters to operators over a unix
// domain socket. Each connection receives one JSON snapshot and is closed;
// no request parsing, no wire negotiation.
package statsock

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ferrybot/ferry/core"
)

// Server listens on a unix socket and serves stats snapshots.
type Server struct {
	socketPath string
	stats      *core.Stats
	listener   net.Listener
	wg         sync.WaitGroup
	logger     *slog.Logger
}

type snapshot struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Uptime        string `json:"uptime"`
	Responses     int64  `json:"responses"`
}

// New creates a stats server.
func New(socketPath string, stats *core.Stats, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		stats:      stats,
		logger:     logger,
	}
}

// Start claims the socket path and begins accepting connections. The socket
// directory is created 0700 and the socket itself tightened to 0600.
func (s *Server) Start() error {
	if err := claimSocketPath(s.socketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.listener = ln
	s.logger.Info("stats socket listening", "path", s.socketPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// claimSocketPath makes the path listenable: the directory is created, and a
// socket left behind by a dead process is removed. A socket something still
// answers on belongs to a running instance and is left alone.
func claimSocketPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat socket: %w", err)
	}

	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket %s is in use by another instance", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove dead socket: %w", err)
	}
	return nil
}

// Shutdown stops the server and waits for in-flight connections.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept error", "error", err)
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	snap := snapshot{
		UptimeSeconds: int64(s.stats.Uptime().Seconds()),
		Uptime:        s.stats.UptimeString(),
		Responses:     s.stats.ResponseTimes(),
	}
	if err := json.NewEncoder(conn).Encode(snap); err != nil {
		s.logger.Warn("write stats snapshot failed", "error", err)
	}
}
