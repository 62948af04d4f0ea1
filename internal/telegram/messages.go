package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Abdualzizsm/bot2/internal/extract"
	"github.com/Abdualzizsm/bot2/internal/platform"
)

func startText(firstName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! 👋\n\n", firstName)
	b.WriteString("Send me a link and I'll download the media for you.\n\n")
	b.WriteString("Supported platforms:\n")
	for _, label := range platform.Labels() {
		b.WriteString("  • " + label + "\n")
	}
	b.WriteString("\nType /help for more.")
	return b.String()
}

func helpText() string {
	return "📖 How to use me:\n\n" +
		"1. Send a link from a supported platform.\n" +
		"2. I'll check it and show you what I found.\n" +
		"3. Pick video or audio and wait for the file.\n\n" +
		"Files over 50 MB can't be sent over Telegram — try the audio version for long videos.\n\n" +
		"Anything that isn't a link, I'll just chat about. 💬"
}

func aboutText() string {
	return "🤖 I'm a media download bot.\n\n" +
		"Powered by yt-dlp under the hood. Send /help for usage."
}

// menuKeyboard navigates between the start, help and about screens.
func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 Help", "help"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ About", "about"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Start", "start"),
		),
	)
}

func unsupportedText() string {
	return "🚫 I can't download from that site. Send a link from one of:\n  • " +
		strings.Join(platform.Labels(), "\n  • ")
}

// formatMetadata renders the probe result shown above the format buttons.
func formatMetadata(label string, meta extract.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", label)
	fmt.Fprintf(&b, "📼 %s\n", meta.Title)
	if meta.Uploader != "" {
		fmt.Fprintf(&b, "👤 %s\n", meta.Uploader)
	}
	if meta.Duration > 0 {
		fmt.Fprintf(&b, "⏱ %d:%02d\n", meta.Duration/60, meta.Duration%60)
	}
	if meta.ViewCount > 0 {
		fmt.Fprintf(&b, "👁 %d views\n", meta.ViewCount)
	}
	b.WriteString("\nChoose a format:")
	return b.String()
}

// formatKeyboard builds the selection buttons. The callback data carries
// only the short token; the URL itself never leaves the process. Audio-only
// sources get no video button.
func formatKeyboard(tok string, audioOnly bool) tgbotapi.InlineKeyboardMarkup {
	audioRow := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🎵 Audio (mp3)", "download_audio_"+tok),
	)
	if audioOnly {
		return tgbotapi.NewInlineKeyboardMarkup(audioRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 Video (best)", "download_video_best_"+tok),
		),
		audioRow,
	)
}
