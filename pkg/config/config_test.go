package config_test

import (
	"testing"
	"time"

	"quotestream/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("defaults should load cleanly: %v", err)
	}

	if cfg.App.Port != ":8080" {
		t.Errorf("unexpected default port %q", cfg.App.Port)
	}
	if cfg.Market.Mode != "full" {
		t.Errorf("unexpected default mode %q", cfg.Market.Mode)
	}
	if cfg.Market.BroadcastInterval != 1500*time.Millisecond {
		t.Errorf("unexpected broadcast interval %v", cfg.Market.BroadcastInterval)
	}
	if cfg.Limits.MessagesPerSecond != 100 {
		t.Errorf("unexpected limiter threshold %d", cfg.Limits.MessagesPerSecond)
	}
	if cfg.App.InstanceID == "" {
		t.Error("instance id should be derived when unset")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MARKET_MODE", "hf")
	t.Setenv("LIMITS_MESSAGES_PER_SECOND", "7")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.Mode != "hf" {
		t.Errorf("env override for mode not applied, got %q", cfg.Market.Mode)
	}
	if cfg.Limits.MessagesPerSecond != 7 {
		t.Errorf("env override for limiter not applied, got %d", cfg.Limits.MessagesPerSecond)
	}
}

func TestLoadConfig_RejectsUnknownMode(t *testing.T) {
	t.Setenv("MARKET_MODE", "turbo")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("unknown market mode should be rejected")
	}
}
