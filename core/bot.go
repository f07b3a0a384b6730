package core

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultPollLimit   = 100
	defaultPollTimeout = 30 // seconds, bounds the transport's long poll
	errorBackoff       = 5 * time.Second
)

// Transport fetches raw update batches from the messaging service. An error
// covers both network failures and an explicit upstream-reported failure;
// the poll loop treats them alike: skip the cycle, offset unchanged.
type Transport interface {
	FetchUpdates(ctx context.Context, offset int64, limit, timeout int) ([]RawUpdate, error)
}

// Dispatcher routes one washed message.
type Dispatcher interface {
	Route(ctx context.Context, msg *Message) []string
}

// Bot drives the sequential poll → wash → route loop. Handler execution
// happens on the pool's workers; submission never blocks this loop.
type Bot struct {
	transport  Transport
	washer     *Washer
	dispatcher Dispatcher
	logger     *slog.Logger

	limit   int
	timeout int
}

// NewBot wires the ingestion loop. Non-positive limit or timeout fall back
// to the defaults.
func NewBot(transport Transport, washer *Washer, dispatcher Dispatcher, logger *slog.Logger, limit, timeout int) *Bot {
	if limit <= 0 {
		limit = defaultPollLimit
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	return &Bot{
		transport:  transport,
		washer:     washer,
		dispatcher: dispatcher,
		logger:     logger,
		limit:      limit,
		timeout:    timeout,
	}
}

// Run polls until ctx is cancelled. A transport failure or a malformed batch
// skips the cycle without advancing the offset, so the next poll redrives
// the same updates (at-least-once delivery).
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("poll loop started", "limit", b.limit, "timeout", b.timeout)
	for {
		if ctx.Err() != nil {
			b.logger.Info("poll loop stopped")
			return nil
		}

		batch, err := b.transport.FetchUpdates(ctx, b.washer.Offset(), b.limit, b.timeout)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("poll loop stopped")
				return nil
			}
			b.logger.Error("fetch updates failed", "offset", b.washer.Offset(), "error", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		msgs, err := b.washer.Wash(batch)
		if err != nil {
			b.logger.Error("malformed update batch", "error", err)
			continue
		}

		for i := range msgs {
			b.dispatcher.Route(ctx, &msgs[i])
		}
	}
}
