package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Abdualzizsm/bot2/internal/extract"
	"github.com/Abdualzizsm/bot2/internal/platform"
	"github.com/Abdualzizsm/bot2/internal/session"
)

// ParseAction decodes inline-button callback data into a download request.
// Two shapes exist: download_video_best_<token> and download_audio_<token>.
func ParseAction(data string) (extract.Format, string, error) {
	parts := strings.Split(data, "_")
	switch {
	case len(parts) == 4 && parts[0] == "download" && parts[1] == "video" && parts[2] == "best":
		return extract.FormatVideo, parts[3], nil
	case len(parts) == 3 && parts[0] == "download" && parts[1] == "audio":
		return extract.FormatAudio, parts[2], nil
	}
	return "", "", fmt.Errorf("telegram: malformed callback data %q", data)
}

// HandleUpdate routes one update. Long work (probes, downloads) runs in its
// own goroutine so the update loop never blocks behind yt-dlp.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	var text string
	withMenu := false
	switch msg.Command() {
	case "start":
		text = startText(msg.From.FirstName)
		withMenu = true
	case "help":
		text = helpText()
	case "about":
		text = aboutText()
	default:
		text = "Unknown command. Try /help."
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if withMenu {
		reply.ReplyMarkup = menuKeyboard()
	}
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("send command reply: %v", err)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	url, found := platform.ExtractFirstURL(msg.Text)
	if !found {
		b.handleChat(ctx, msg)
		return
	}
	if !platform.IsSupported(url) {
		reply := tgbotapi.NewMessage(msg.Chat.ID, unsupportedText())
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("send unsupported reply: %v", err)
		}
		return
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("send typing action: %v", err)
	}

	status, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "🔎 Checking the link..."))
	if err != nil {
		log.Printf("send status message: %v", err)
		return
	}

	go b.analyze(ctx, msg.Chat.ID, status.MessageID, url)
}

// analyze probes the URL and swaps the status message for the metadata
// summary with format buttons, or for an error explanation.
func (b *Bot) analyze(ctx context.Context, chatID int64, messageID int, url string) {
	meta, tok, err := b.orch.Analyze(ctx, url)
	if err != nil {
		log.Printf("probe %s failed: %v", url, err)
		b.editOrLog(chatID, messageID, session.UserMessage(err))
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, formatMetadata(platform.Label(url), meta))
	kb := formatKeyboard(tok, platform.AudioOnly(url))
	edit.ReplyMarkup = &kb
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("edit to metadata summary: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Acknowledge immediately so the button stops spinning.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Printf("answer callback: %v", err)
	}
	if cq.Message == nil {
		return
	}

	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	if text, ok := menuScreen(cq); ok {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		kb := menuKeyboard()
		edit.ReplyMarkup = &kb
		if _, err := b.api.Send(edit); err != nil {
			log.Printf("edit to menu screen: %v", err)
		}
		return
	}

	format, tok, err := ParseAction(cq.Data)
	if err != nil {
		log.Printf("callback parse: %v", err)
		b.editOrLog(chatID, messageID, "❌ That button is broken. Send the link again.")
		return
	}

	b.editOrLog(chatID, messageID, "⬇️ Starting download...")

	go func() {
		key := session.Key{ChatID: chatID, MessageID: messageID}
		if err := b.orch.Download(ctx, key, tok, format); err != nil {
			log.Printf("download %s failed: %v", key.DirName(), err)
			b.editOrLog(chatID, messageID, session.UserMessage(err))
		}
	}()
}

func menuScreen(cq *tgbotapi.CallbackQuery) (string, bool) {
	switch cq.Data {
	case "start":
		name := ""
		if cq.From != nil {
			name = cq.From.FirstName
		}
		return startText(name), true
	case "help":
		return helpText(), true
	case "about":
		return aboutText(), true
	}
	return "", false
}

func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	if b.companion == nil {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Send me a link to download, or /help to see what I can do.")
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("send hint reply: %v", err)
		}
		return
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("send typing action: %v", err)
	}

	go func() {
		answer, err := b.companion.Reply(ctx, msg.Text)
		if err != nil {
			log.Printf("companion reply: %v", err)
			answer = "💭 I'm lost for words right now. Send me a link instead?"
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, answer)
		reply.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("send chat reply: %v", err)
		}
	}()
}

func (b *Bot) editOrLog(chatID int64, messageID int, text string) {
	if err := b.EditText(chatID, messageID, text); err != nil {
		log.Printf("edit message %d/%d: %v", chatID, messageID, err)
	}
}
