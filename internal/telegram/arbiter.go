package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrConflict means another process is consuming getUpdates for this token.
var ErrConflict = errors.New("telegram: another consumer holds this bot token")

// updateAPI is the slice of the Bot API the arbiter needs. The production
// implementation wraps tgbotapi; tests substitute a scripted fake.
type updateAPI interface {
	DeleteWebhook(dropPending bool) error
	GetUpdates(offset, timeout int) ([]tgbotapi.Update, error)
}

// Arbiter makes this process the sole consumer of a bot token's update
// stream. Telegram allows either a webhook or one getUpdates poller, never
// both, so before polling we clear any registered webhook and retry 409
// conflicts until the previous consumer lets go.
type Arbiter struct {
	api     updateAPI
	retries int
	backoff time.Duration
}

func NewArbiter(api updateAPI, retries int, backoff time.Duration) *Arbiter {
	return &Arbiter{api: api, retries: retries, backoff: backoff}
}

// Clear removes any existing webhook registration and drops the update
// backlog queued for a previous consumer. Both transports run it before
// receiving their first update.
func (a *Arbiter) Clear() error {
	if err := a.api.DeleteWebhook(true); err != nil {
		return fmt.Errorf("telegram: clear webhook: %w", err)
	}
	return nil
}

// Acquire clears the webhook (dropping queued updates) and confirms the
// update stream is ours. Conflicts back off linearly: attempt n waits
// n*backoff before retrying.
func (a *Arbiter) Acquire(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * a.backoff
			log.Printf("conflict with another consumer, retrying in %s (attempt %d/%d)", wait, attempt, a.retries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := a.Clear(); err != nil {
			lastErr = err
			continue
		}

		if _, err := a.api.GetUpdates(0, 0); err != nil {
			if isConflict(err) {
				lastErr = ErrConflict
				continue
			}
			return fmt.Errorf("telegram: verify update stream: %w", err)
		}
		return nil
	}
	return fmt.Errorf("telegram: could not acquire update stream after %d retries: %w", a.retries, lastErr)
}

// Poll long-polls for updates and hands each one to handle. A mid-stream
// conflict re-runs Acquire instead of dying; other errors are logged and
// retried after a short pause.
func (a *Arbiter) Poll(ctx context.Context, timeout int, handle func(tgbotapi.Update)) error {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := a.api.GetUpdates(offset, timeout)
		if err != nil {
			if isConflict(err) {
				if err := a.Acquire(ctx); err != nil {
					return err
				}
				continue
			}
			log.Printf("getUpdates failed: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handle(u)
		}
	}
}

func isConflict(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 409
	}
	// Some transports surface the API error as flat text.
	return err != nil && strings.Contains(err.Error(), "Conflict")
}
