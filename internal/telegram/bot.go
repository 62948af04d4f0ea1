// Package telegram is the chat transport: it owns the Bot API connection,
// the update stream (polling or webhook) and every message the user sees.
package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Abdualzizsm/bot2/internal/chat"
	"github.com/Abdualzizsm/bot2/internal/config"
	"github.com/Abdualzizsm/bot2/internal/session"
)

// Bot holds the API client and the collaborators the handlers dispatch to.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	orch      *session.Orchestrator
	companion chat.Companion
	arbiter   *Arbiter
}

// New connects to the Bot API and wires the handlers. The orchestrator is
// attached afterwards because it needs the bot as its notifier.
func New(cfg *config.Config, companion chat.Companion) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	log.Printf("Authorized on account %s (@%s)", api.Self.FirstName, api.Self.UserName)

	b := &Bot{api: api, cfg: cfg, companion: companion}
	b.arbiter = NewArbiter(apiAdapter{api}, cfg.ConflictRetries, cfg.ConflictBackoff)
	return b, nil
}

// SetOrchestrator attaches the download orchestrator. Must be called before Run.
func (b *Bot) SetOrchestrator(o *session.Orchestrator) { b.orch = o }

// Run consumes updates until ctx is cancelled. In polling mode it first
// acquires sole consumership of the update stream; in webhook mode it
// registers the webhook and leaves delivery to the HTTP server.
func (b *Bot) Run(ctx context.Context) error {
	switch b.cfg.Mode {
	case config.ModeWebhook:
		return b.runWebhook(ctx)
	default:
		return b.runPolling(ctx)
	}
}

func (b *Bot) runPolling(ctx context.Context) error {
	log.Println("Starting in polling mode")
	if err := b.arbiter.Acquire(ctx); err != nil {
		return err
	}
	return b.arbiter.Poll(ctx, 30, func(u tgbotapi.Update) {
		b.HandleUpdate(ctx, u)
	})
}

func (b *Bot) runWebhook(ctx context.Context) error {
	// Drop any previous registration and its queued backlog before this
	// instance registers itself.
	if err := b.arbiter.Clear(); err != nil {
		return err
	}

	url := b.cfg.WebhookBaseURL + "/webhook/" + b.cfg.TelegramBotToken
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram: build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("telegram: register webhook: %w", err)
	}
	log.Printf("Webhook registered at %s/webhook/<token>", b.cfg.WebhookBaseURL)

	<-ctx.Done()

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Printf("remove webhook on shutdown: %v", err)
	}
	return ctx.Err()
}

// EditText, SendVideo and SendAudio implement session.Notifier.

func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (b *Bot) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	_, err := b.api.Send(video)
	return err
}

func (b *Bot) SendAudio(chatID int64, path, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Caption = caption
	_, err := b.api.Send(audio)
	return err
}

// apiAdapter exposes the two Bot API calls the arbiter needs.
type apiAdapter struct {
	api *tgbotapi.BotAPI
}

func (a apiAdapter) DeleteWebhook(dropPending bool) error {
	_, err := a.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending})
	return err
}

func (a apiAdapter) GetUpdates(offset, timeout int) ([]tgbotapi.Update, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeout
	return a.api.GetUpdates(u)
}
