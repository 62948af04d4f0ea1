package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Transport strategies. Exactly one is active per process.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	TelegramBotToken string
	Mode             string
	WebhookBaseURL   string
	Port             string

	YTDLPPath          string
	DownloadDir        string
	YouTubeCookiesPath string

	MaxFileBytes     int64
	ProgressInterval time.Duration
	ProbeTimeout     time.Duration
	ProbeRetries     int
	ConflictRetries  int
	ConflictBackoff  time.Duration
	TokenCapacity    int

	SpotifyClientID     string
	SpotifyClientSecret string
	GeminiAPIKey        string
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("WARNING: TELEGRAM_BOT_TOKEN environment variable not set.")
	}

	mode := os.Getenv("BOT_MODE")
	if mode != ModeWebhook {
		if mode != "" && mode != ModePolling {
			log.Printf("Unknown BOT_MODE '%s', falling back to %s.\n", mode, ModePolling)
		}
		mode = ModePolling
	}

	baseURL := os.Getenv("WEBHOOK_BASE_URL")
	if mode == ModeWebhook && baseURL == "" {
		log.Println("WARNING: BOT_MODE=webhook but WEBHOOK_BASE_URL is not set. Updates will never arrive.")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
		log.Printf("PORT not set, using default: %s\n", port)
	}

	ytDlpPath := os.Getenv("YTDLP_PATH")
	if ytDlpPath == "" {
		ytDlpPath = "yt-dlp"
		log.Printf("YTDLP_PATH not set, using default: %s\n", ytDlpPath)
	}

	downloadDir := os.Getenv("DOWNLOAD_DIR")
	if downloadDir == "" {
		downloadDir = "temp_downloads"
		log.Printf("DOWNLOAD_DIR not set, using default: %s\n", downloadDir)
	}

	youTubeCookiesPath := os.Getenv("YOUTUBE_COOKIES_PATH")
	if youTubeCookiesPath == "" {
		log.Println("Warning: YOUTUBE_COOKIES_PATH not set. Some YouTube downloads may fail due to bot detection.")
	}

	spotifyClientID := os.Getenv("SPOTIFY_CLIENT_ID")
	spotifyClientSecret := os.Getenv("SPOTIFY_CLIENT_SECRET")
	if spotifyClientID == "" || spotifyClientSecret == "" {
		log.Println("WARNING: SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET is not set. Spotify links will be rejected.")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Println("GEMINI_API_KEY not set. The chat companion is disabled; non-link messages get the usage hint.")
	}

	return &Config{
		TelegramBotToken:    token,
		Mode:                mode,
		WebhookBaseURL:      baseURL,
		Port:                port,
		YTDLPPath:           ytDlpPath,
		DownloadDir:         downloadDir,
		YouTubeCookiesPath:  youTubeCookiesPath,
		MaxFileBytes:        envInt64("MAX_FILE_SIZE_MB", 50) * 1024 * 1024,
		ProgressInterval:    envSeconds("PROGRESS_INTERVAL_SECONDS", 5),
		ProbeTimeout:        envSeconds("PROBE_TIMEOUT_SECONDS", 30),
		ProbeRetries:        envInt("PROBE_RETRIES", 2),
		ConflictRetries:     envInt("CONFLICT_RETRIES", 3),
		ConflictBackoff:     envSeconds("CONFLICT_BACKOFF_SECONDS", 5),
		TokenCapacity:       envInt("TOKEN_CAPACITY", 1024),
		SpotifyClientID:     spotifyClientID,
		SpotifyClientSecret: spotifyClientSecret,
		GeminiAPIKey:        geminiKey,
	}, nil
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: Could not parse %s='%s', using default %d.\n", name, raw, fallback)
		return fallback
	}
	return v
}

func envInt64(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		log.Printf("Warning: Could not parse %s='%s', using default %d.\n", name, raw, fallback)
		return fallback
	}
	return v
}

func envSeconds(name string, fallback int) time.Duration {
	return time.Duration(envInt(name, fallback)) * time.Second
}
