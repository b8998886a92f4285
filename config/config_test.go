package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.TokenExpiry != 24*time.Hour {
		t.Fatalf("expected default token expiry 24h, got %s", cfg.Auth.TokenExpiry)
	}
	if cfg.Minio.Bucket != "bap-attachments" {
		t.Fatalf("expected default bucket, got %q", cfg.Minio.Bucket)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("expected default log settings, got %+v", cfg.Log)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("database:\n  url: postgres://file/db\nlog:\n  level: debug\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "shhh")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "postgres://env/db" {
		t.Fatalf("env must win over file, got %q", cfg.Database.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected file log level, got %q", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database url")
	}
	cfg.Database.URL = "postgres://x/y"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
	cfg.Auth.JWTSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
