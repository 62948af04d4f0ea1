package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Mode != ModePolling {
		t.Errorf("Expected default mode %s, got %s", ModePolling, cfg.Mode)
	}
	if cfg.MaxFileBytes != 50*1024*1024 {
		t.Errorf("Expected default size ceiling of 50 MiB, got %d", cfg.MaxFileBytes)
	}
	if cfg.ProgressInterval != 5*time.Second {
		t.Errorf("Expected default progress interval 5s, got %s", cfg.ProgressInterval)
	}
	if cfg.YTDLPPath != "yt-dlp" {
		t.Errorf("Expected default yt-dlp path, got %s", cfg.YTDLPPath)
	}
	if cfg.TokenCapacity != 1024 {
		t.Errorf("Expected default token capacity 1024, got %d", cfg.TokenCapacity)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("BOT_MODE", "webhook")
	t.Setenv("WEBHOOK_BASE_URL", "https://bot.example.com")
	t.Setenv("MAX_FILE_SIZE_MB", "20")
	t.Setenv("PROGRESS_INTERVAL_SECONDS", "2")
	t.Setenv("CONFLICT_RETRIES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Mode != ModeWebhook {
		t.Errorf("Expected mode webhook, got %s", cfg.Mode)
	}
	if cfg.MaxFileBytes != 20*1024*1024 {
		t.Errorf("Expected 20 MiB ceiling, got %d", cfg.MaxFileBytes)
	}
	if cfg.ProgressInterval != 2*time.Second {
		t.Errorf("Expected 2s progress interval, got %s", cfg.ProgressInterval)
	}
	if cfg.ConflictRetries != 7 {
		t.Errorf("Expected 7 conflict retries, got %d", cfg.ConflictRetries)
	}
}

func TestLoadRejectsGarbageNumbers(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MAX_FILE_SIZE_MB", "not-a-number")
	t.Setenv("PROBE_RETRIES", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MaxFileBytes != 50*1024*1024 {
		t.Errorf("Garbage MAX_FILE_SIZE_MB should fall back to 50 MiB, got %d", cfg.MaxFileBytes)
	}
	if cfg.ProbeRetries != 2 {
		t.Errorf("Negative PROBE_RETRIES should fall back to 2, got %d", cfg.ProbeRetries)
	}
}
