package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	maxDeleteDelay = 900 // seconds
	deleteTimeout  = 10 * time.Second
)

// ErrDelayRange rejects a deletion delay outside [0, 900] seconds.
var ErrDelayRange = errors.New("deletion delay outside [0, 900] seconds")

// MessageDeleter is the one slice of the bot API client the deletor needs.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Deletor deletes a message immediately or after a bounded delay.
type Deletor struct {
	client MessageDeleter
	logger *slog.Logger
	after  func(time.Duration, func()) *time.Timer
}

// NewDeletor creates a deletor backed by the given delete capability.
func NewDeletor(client MessageDeleter, logger *slog.Logger) *Deletor {
	return &Deletor{
		client: client,
		logger: logger,
		after:  time.AfterFunc,
	}
}

// Schedule deletes the message now (delay 0) or arms a one-shot timer for it.
// Delays outside [0, 900] seconds return ErrDelayRange with no side effect.
// An armed timer is fire-and-forget: there is no handle to cancel it, and a
// failed delete is only logged.
func (d *Deletor) Schedule(delaySeconds int, chatID, messageID int64) error {
	if delaySeconds < 0 || delaySeconds > maxDeleteDelay {
		return fmt.Errorf("%w: %d", ErrDelayRange, delaySeconds)
	}

	if delaySeconds == 0 {
		d.delete(chatID, messageID)
		return nil
	}

	d.after(time.Duration(delaySeconds)*time.Second, func() {
		d.delete(chatID, messageID)
	})
	return nil
}

func (d *Deletor) delete(chatID, messageID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	if err := d.client.DeleteMessage(ctx, chatID, messageID); err != nil {
		d.logger.Error("scheduled delete failed",
			"chat_id", chatID, "message_id", messageID, "error", err)
	}
}
