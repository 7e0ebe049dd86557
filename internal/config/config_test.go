package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STOREFRONT_AUTH_JWT_SECRET", "s")
	t.Setenv("STOREFRONT_WEBHOOK_SECRET", "w")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr %q", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != StorageMySQL {
		t.Fatalf("driver %q", cfg.Storage.Driver)
	}
	if cfg.Auth.AccessTTL != time.Hour {
		t.Fatalf("access ttl %v", cfg.Auth.AccessTTL)
	}
	if cfg.Webhook.DedupTTL != 24*time.Hour {
		t.Fatalf("dedup ttl %v", cfg.Webhook.DedupTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_AUTH_JWT_SECRET", "s")
	t.Setenv("STOREFRONT_WEBHOOK_SECRET", "w")
	t.Setenv("STOREFRONT_HTTP_ADDR", ":9000")
	t.Setenv("STOREFRONT_STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.Storage.Driver != StorageMemory {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "http:\n  addr: \":7777\"\nstorage:\n  driver: memory\nauth:\n  jwt_secret: file-secret\nwebhook:\n  secret: hook\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":7777" || cfg.Auth.JWTSecret != "file-secret" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Storage: StorageConfig{Driver: StorageMemory},
		Auth:    AuthConfig{JWTSecret: "s"},
		Webhook: WebhookConfig{Secret: "w"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base
	c.Storage.Driver = "postgres"
	if err := c.Validate(); err == nil {
		t.Fatal("unknown driver accepted")
	}

	c = base
	c.Storage.Driver = StorageMySQL
	c.Storage.MySQLDSN = ""
	if err := c.Validate(); err == nil {
		t.Fatal("mysql driver without dsn accepted")
	}

	c = base
	c.Auth.JWTSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatal("missing jwt secret accepted")
	}

	c = base
	c.Webhook.Secret = ""
	if err := c.Validate(); err == nil {
		t.Fatal("missing webhook secret accepted")
	}
	c.Webhook.SkipVerification = true
	if err := c.Validate(); err != nil {
		t.Fatalf("skip-verification config rejected: %v", err)
	}
}
