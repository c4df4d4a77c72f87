package appconfig

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestLoadAppliesCompiledDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	if err := BindFlags(cmd, v); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("expected default store backend memory, got %q", cfg.StoreBackend)
	}
	if cfg.RouterConfidence != 0.6 {
		t.Fatalf("expected default router confidence 0.6, got %v", cfg.RouterConfidence)
	}
	if cfg.RateLimit.WhatsApp != 80 {
		t.Fatalf("expected default whatsapp rate limit 80, got %d", cfg.RateLimit.WhatsApp)
	}
}

func TestLoadFlagOverridesDefault(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	if err := BindFlags(cmd, v); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := cmd.PersistentFlags().Set("http-addr", ":9090"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected flag override, got %q", cfg.HTTPAddr)
	}
}

func TestLoadRejectsPostgresBackendWithoutDSN(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	if err := BindFlags(cmd, v); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := cmd.PersistentFlags().Set("store-backend", "postgres"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}

	if _, err := Load(v); err == nil {
		t.Fatalf("expected error when postgres backend has no dsn")
	}
}
