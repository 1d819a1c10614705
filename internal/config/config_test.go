package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
moderation:
  evaluate_all_categories: true
  kick_window: 90s
autodelete:
  default_ttl: 15m
reconcile:
  batch: 50
bot:
  chats:
    -100123: 7
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if !cfg.Moderation.EvaluateAllCategories {
		t.Fatalf("expected evaluate_all_categories from yaml")
	}
	if cfg.Moderation.KickWindow != 90*time.Second {
		t.Fatalf("unexpected kick window: %v", cfg.Moderation.KickWindow)
	}
	if cfg.AutoDelete.DefaultTTL != 15*time.Minute {
		t.Fatalf("unexpected autodelete ttl: %v", cfg.AutoDelete.DefaultTTL)
	}
	if cfg.Bot.Chats[-100123] != 7 {
		t.Fatalf("unexpected chat bindings: %v", cfg.Bot.Chats)
	}
	if cfg.Reconcile.Batch != 50 {
		t.Fatalf("unexpected reconcile batch: %d", cfg.Reconcile.Batch)
	}
	if cfg.Moderation.WarnLimit != 3 || cfg.Moderation.DefaultPenaltyDuration != 365*24*time.Hour {
		t.Fatalf("defaults must survive a partial yaml: %+v", cfg.Moderation)
	}
	if cfg.AutoDelete.Interval != time.Minute || cfg.Reconcile.Interval != 5*time.Minute {
		t.Fatalf("unexpected worker intervals: %v %v", cfg.AutoDelete.Interval, cfg.Reconcile.Interval)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Session.Timeout != 5*time.Minute {
		t.Fatalf("unexpected session timeout: %v", cfg.Session.Timeout)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AUTODELETE_INTERVAL", "30s")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("EVALUATE_ALL_CATEGORIES", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AutoDelete.Interval != 30*time.Second {
		t.Fatalf("unexpected autodelete interval: %v", cfg.AutoDelete.Interval)
	}
	if cfg.Redis.DB != 4 {
		t.Fatalf("unexpected redis db: %d", cfg.Redis.DB)
	}
	if cfg.Postgres.DSN != "" {
		t.Fatalf("an explicitly empty dsn must disable postgres, got %q", cfg.Postgres.DSN)
	}
	if !cfg.Moderation.EvaluateAllCategories {
		t.Fatalf("expected env override for evaluate_all_categories")
	}
}

func TestMalformedValuesFail(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RECONCILE_INTERVAL", "soon")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}

func TestValidateRejectsWarnLimit(t *testing.T) {
	cfg := Default()
	cfg.Moderation.WarnLimit = 5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPathFromEnv(t *testing.T) {
	clearConfigEnv(t)
	if got := PathFromEnv(); got != DefaultPath {
		t.Fatalf("expected default path, got %q", got)
	}

	t.Setenv("APP_CONFIG", "/etc/chatguard.yaml")
	if got := PathFromEnv(); got != "/etc/chatguard.yaml" {
		t.Fatalf("expected APP_CONFIG path, got %q", got)
	}
}

func TestShutdownTimeoutOverride(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.HTTP.ShutdownTimeout)
	}

	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "0s")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected zero shutdown timeout to be rejected")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"APP_CONFIG",
		"HTTP_ADDR",
		"HTTP_SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"BOT_TOKEN",
		"BOT_METRICS_ADDR",
		"EVALUATE_ALL_CATEGORIES",
		"AUTODELETE_INTERVAL",
		"RECONCILE_INTERVAL",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
