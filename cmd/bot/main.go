package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/Abdualzizsm/bot2/internal/chat"
	"github.com/Abdualzizsm/bot2/internal/config"
	"github.com/Abdualzizsm/bot2/internal/extract"
	"github.com/Abdualzizsm/bot2/internal/session"
	"github.com/Abdualzizsm/bot2/internal/telegram"
	"github.com/Abdualzizsm/bot2/internal/token"
	"github.com/Abdualzizsm/bot2/internal/web"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, relying on system environment variables.")
	}

	log.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Error loading configuration: %v", err)
		os.Exit(1)
	}
	if cfg.TelegramBotToken == "" {
		log.Println("CRITICAL: Telegram Bot Token is not set in configuration! Exiting.")
		os.Exit(1)
	}
	log.Println("Configuration loaded successfully.")
	log.Printf(" - Mode: %s", cfg.Mode)
	log.Printf(" - YTDLP Path: %s", cfg.YTDLPPath)
	log.Printf(" - Download Dir: %s", cfg.DownloadDir)
	log.Printf(" - Max File Size: %d bytes", cfg.MaxFileBytes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var spotifyClient *spotify.Client
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		log.Println("Spotify ClientID and ClientSecret are configured. Initializing Spotify client...")
		authConfig := &clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     spotifyauth.TokenURL,
		}
		authToken, tokenErr := authConfig.Token(ctx)
		if tokenErr != nil {
			log.Printf("ERROR: Couldn't get spotify token: %v. Spotify features will be disabled.", tokenErr)
		} else {
			httpClient := spotifyauth.New().Client(ctx, authToken)
			spotifyClient = spotify.New(httpClient)
			log.Println("Successfully authenticated with Spotify API.")
		}
	} else {
		log.Println("WARNING: SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET is not set. Spotify features will be disabled.")
	}

	var companion chat.Companion
	if cfg.GeminiAPIKey != "" {
		gemini, err := chat.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Printf("ERROR: Couldn't initialize Gemini: %v. Chat replies will be disabled.", err)
		} else {
			companion = gemini
			log.Println("Gemini chat companion enabled.")
		}
	} else {
		log.Println("GEMINI_API_KEY is not set. Chat replies will be disabled.")
	}

	registry := token.NewRegistry(cfg.TokenCapacity)
	ytdlp := extract.NewYTDLP(cfg.YTDLPPath, cfg.YouTubeCookiesPath, cfg.ProbeTimeout, cfg.ProbeRetries)
	extractor := extract.NewService(ytdlp, extract.NewSpotifyProber(spotifyClient))

	log.Println("Initializing Telegram bot...")
	bot, err := telegram.New(cfg, companion)
	if err != nil {
		log.Printf("Error initializing Telegram bot: %v", err)
		os.Exit(1)
	}

	orch := session.NewOrchestrator(registry, extractor, bot, cfg.DownloadDir, cfg.MaxFileBytes, cfg.ProgressInterval)
	bot.SetOrchestrator(orch)

	server := web.NewServer(":"+cfg.Port, registry, orch, cfg.TelegramBotToken, func(u tgbotapi.Update) {
		bot.HandleUpdate(ctx, u)
	})

	log.Println("Application setup complete. Starting services...")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("Shutting down with error: %v", err)
		os.Exit(1)
	}
	log.Println("Bot has stopped.")
}
