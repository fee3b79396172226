package browser

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.CardSelector == "" || cfg.DetailContainer == "" {
		t.Fatalf("selectors must default, got %+v", cfg)
	}
	if len(cfg.GreetSelectors) == 0 || len(cfg.ModalSelectors) == 0 {
		t.Fatalf("selector cascades must default, got %+v", cfg)
	}
	if cfg.DetailTimeout != 5*time.Second {
		t.Fatalf("unexpected detail timeout: %s", cfg.DetailTimeout)
	}
	if cfg.MaxActionDelay <= cfg.MinActionDelay {
		t.Fatalf("delay bounds inverted: %s..%s", cfg.MinActionDelay, cfg.MaxActionDelay)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("user agent must default")
	}
}

func TestConfigKeepsOverrides(t *testing.T) {
	cfg := Config{
		CardSelector:   ".custom-card",
		DetailTimeout:  2 * time.Second,
		MinActionDelay: time.Second,
		MaxActionDelay: 3 * time.Second,
	}
	cfg.applyDefaults()

	if cfg.CardSelector != ".custom-card" {
		t.Fatalf("override lost: %s", cfg.CardSelector)
	}
	if cfg.DetailTimeout != 2*time.Second {
		t.Fatalf("override lost: %s", cfg.DetailTimeout)
	}
	if cfg.MaxActionDelay != 3*time.Second {
		t.Fatalf("override lost: %s", cfg.MaxActionDelay)
	}
}
