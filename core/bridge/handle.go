package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

const respMaxBytes = 64 * 1024

// Handler is an invokable loaded plugin. Invoke returns the response's data
// payload, which may carry host directives (see Directives).
type Handler interface {
	Invoke(ctx context.Context, message json.RawMessage) (json.RawMessage, error)
}

// Handle is a loaded plugin: a child process owned by the bridge that
// receives one request envelope per line on stdin and answers on stdout.
// A Handle survives across dispatch cycles until its source file changes.
type Handle struct {
	plugin  string
	modTime time.Time

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	mu     sync.Mutex // serializes invocations; pool workers share the handle

	// stale marks a handle whose reader goroutine still owes a response line
	// after a cancelled invocation. The pipe cannot be resynchronized, so the
	// handle refuses further invocations until the bridge restarts it.
	stale bool
}

// startHandle launches the plugin executable. The bot API base URL is passed
// in the environment so plugin code can build its own client, per the
// (client, message) execution contract.
func startHandle(plugin, execPath, apiURL string, logger *slog.Logger) (*Handle, error) {
	cmd := exec.Command(execPath)
	cmd.Env = append(os.Environ(), "FERRY_API_URL="+apiURL, "FERRY_PLUGIN="+plugin)
	cmd.Stderr = &logWriter{logger: logger, plugin: plugin}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("exec %s: %w", execPath, err)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Buffer(make([]byte, respMaxBytes), respMaxBytes)

	return &Handle{
		plugin: plugin,
		cmd:    cmd,
		stdin:  stdin,
		stdout: scanner,
	}, nil
}

// Invoke sends one normalized message to the plugin and waits for its
// response envelope. There is no built-in timeout: a stuck plugin occupies
// its caller until the context is cancelled or the process answers.
func (h *Handle) Invoke(ctx context.Context, message json.RawMessage) (json.RawMessage, error) {
	req := Request{
		Version: ProtocolVersion,
		ID:      "inv_" + uuid.New().String()[:8],
		Plugin:  h.plugin,
		Message: message,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stale {
		return nil, fmt.Errorf("plugin %q is out of sync, awaiting reload", h.plugin)
	}

	if _, err := h.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write to plugin %q: %w", h.plugin, err)
	}

	type scanResult struct {
		line []byte
		err  error
	}
	ch := make(chan scanResult, 1)
	go func() {
		if h.stdout.Scan() {
			// Copy the bytes since the scanner reuses its buffer.
			line := make([]byte, len(h.stdout.Bytes()))
			copy(line, h.stdout.Bytes())
			ch <- scanResult{line: line}
		} else {
			ch <- scanResult{err: h.stdout.Err()}
		}
	}()

	select {
	case <-ctx.Done():
		h.stale = true
		return nil, fmt.Errorf("plugin %q invocation cancelled: %w", h.plugin, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("read from plugin %q: %w", h.plugin, result.err)
		}
		if result.line == nil {
			return nil, fmt.Errorf("plugin %q closed stdout", h.plugin)
		}

		var resp Response
		if err := json.Unmarshal(result.line, &resp); err != nil {
			return nil, fmt.Errorf("invalid response from %q: %w", h.plugin, err)
		}
		if err := ValidateResponse(&resp); err != nil {
			return nil, fmt.Errorf("invalid response from %q: %w", h.plugin, err)
		}
		if resp.ID != req.ID {
			return nil, fmt.Errorf("response id mismatch from %q: got %q, want %q",
				h.plugin, resp.ID, req.ID)
		}
		if !resp.OK {
			return nil, fmt.Errorf("plugin %q: %w", h.plugin, resp.Error)
		}
		return resp.Data, nil
	}
}

// desynced reports whether the handle must be restarted before it can serve
// another invocation.
func (h *Handle) desynced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale
}

// stop kills the plugin process and reaps it.
func (h *Handle) stop(logger *slog.Logger) {
	h.stdin.Close()
	if err := h.cmd.Process.Kill(); err != nil {
		logger.Warn("failed to kill plugin", "plugin", h.plugin, "error", err)
	}
	h.cmd.Wait()
}

// logWriter adapts plugin stderr to slog.
type logWriter struct {
	logger *slog.Logger
	plugin string
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Debug("plugin stderr", "plugin", w.plugin, "output", string(p))
	return len(p), nil
}
