// Package runner executes plugin handlers on a fixed set of workers fed
// from an unbounded FIFO queue. One handler's fault never reaches the
// scheduler or its siblings: failures are logged and swallowed here.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task is one unit of plugin work. The identifying fields exist only so a
// failure can be logged with enough context to locate the plugin, the chat,
// and the message kind that triggered it.
type Task struct {
	Plugin string
	ChatID int64
	Kind   string
	Run    func(ctx context.Context) error
}

// Pool is the bounded-worker execution pool.
type Pool struct {
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool
}

// New starts a pool with the given worker count (minimum 1).
func New(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{logger: logger}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task and returns immediately; the queue is unbounded so
// submission never blocks on handler completion. After Shutdown it reports
// false and the task is dropped.
func (p *Pool) Submit(t Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	return true
}

// Shutdown stops intake and waits for queued and in-flight work to finish.
// It drains rather than cancels: running handlers complete on their own.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.execute(t)
	}
}

// execute runs one task, converting panics into logged faults.
func (p *Pool) execute(t Task) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return t.Run(context.Background())
	}()

	if err != nil {
		p.logger.Error("handler fault",
			"plugin", t.Plugin, "chat_id", t.ChatID, "kind", t.Kind, "error", err)
		return
	}
	p.logger.Debug("handler done",
		"plugin", t.Plugin, "chat_id", t.ChatID, "kind", t.Kind)
}
