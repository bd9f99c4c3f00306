package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("TG_NOTIFY_CHAT_ID", "-100123")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("ожидали sqlite, получили %q", cfg.Store.Driver)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Fatalf("ожидали 90s, получили %v", cfg.Cache.TTL)
	}
	if cfg.Telegram.NotifyChatID != -100123 {
		t.Fatalf("неожиданный chat id: %d", cfg.Telegram.NotifyChatID)
	}
	if cfg.Meta.APIVersion != "v21.0" || cfg.HistorySinceYear != 2023 || cfg.Queue.Key != "sync_jobs" {
		t.Fatalf("неожиданные значения по умолчанию: %+v", cfg)
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Setenv("META_TIMEOUT", "soon")
	if _, err := Parse(); err == nil {
		t.Fatalf("ожидали ошибку разбора")
	}
}
