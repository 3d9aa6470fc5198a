package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every key the loader reads. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range append(knownKeys, EnvConfigFile, envLegacyDatabaseURL) {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8000 || cfg.Addr() != ":8000" {
			t.Fatalf("expected default HTTP port 8000, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != "sqlite" || cfg.DatabaseURL != "file:phone_monitoring.db" {
			t.Fatalf("unexpected default database %q %q", cfg.DBDriver, cfg.DatabaseURL)
		}
		if cfg.RetentionDays != 30 || cfg.StuckSessionThreshold != 6*time.Hour {
			t.Fatalf("unexpected retention defaults %+v", cfg)
		}
		if cfg.SchedulerEnabled() || cfg.AutoMigrate {
			t.Fatalf("expected scheduler and auto-migrate to be off by default")
		}
		if cfg.Location != time.Local {
			t.Fatalf("expected local time zone by default")
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvHTTPPort, "9090")
		t.Setenv(EnvTimeZone, "UTC")
		t.Setenv(EnvRetentionDays, "7")
		t.Setenv(EnvStuckSessionThreshold, "90m")
		t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
		t.Setenv(EnvCleanupSchedule, "@hourly")
		t.Setenv(EnvAutoMigrate, "true")
		t.Setenv(EnvRateLimit, "2.5")
		t.Setenv(EnvRateBurst, "4")
		t.Setenv(EnvLogLevel, "DEBUG")
		t.Setenv(EnvLogFormat, "text")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.TimeZone != "UTC" || cfg.Location != time.UTC {
			t.Fatalf("unexpected port or zone %+v", cfg)
		}
		if cfg.RetentionDays != 7 || cfg.StuckSessionThreshold != 90*time.Minute {
			t.Fatalf("unexpected retention settings %+v", cfg)
		}
		if !cfg.SchedulerEnabled() || cfg.CleanupSchedule != "@hourly" || !cfg.AutoMigrate {
			t.Fatalf("unexpected scheduler settings %+v", cfg)
		}
		if cfg.RateLimit != 2.5 || cfg.RateBurst != 4 || cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
			t.Fatalf("unexpected limits or logging %+v", cfg)
		}
	})

	t.Run("postgres url selects the postgres driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(envLegacyDatabaseURL, "postgres://monitor@localhost/monitor")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.DBDriver != "postgres" || cfg.DatabaseURL != "postgres://monitor@localhost/monitor" {
			t.Fatalf("unexpected database settings %q %q", cfg.DBDriver, cfg.DatabaseURL)
		}
	})

	t.Run("postgres driver requires a url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvDBDriver, "postgres")

		_, err := Load()
		if err == nil || err.Error() != "missing required configuration: MONITOR_DATABASE_URL" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports every invalid value together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvHTTPPort, "abc")
		t.Setenv(EnvRetentionDays, "-1")
		t.Setenv(EnvStuckSessionThreshold, "soon")
		t.Setenv(EnvLogFormat, "xml")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid configuration values: MONITOR_HTTP_PORT, MONITOR_RETENTION_DAYS, MONITOR_STUCK_SESSION_THRESHOLD, MONITOR_LOG_FORMAT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Run("environment overrides file values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigFile, writeFile(t, "http_port: 7000\nretention_days: 14\nauto_migrate: true\ntimezone: UTC\n"))
		t.Setenv(EnvRetentionDays, "60")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7000 || !cfg.AutoMigrate {
			t.Fatalf("expected file values to apply, got %+v", cfg)
		}
		if cfg.RetentionDays != 60 {
			t.Fatalf("expected environment to win, got %d", cfg.RetentionDays)
		}
		if cfg.Location == nil || cfg.Location != time.UTC {
			t.Fatalf("unexpected location %v", cfg.Location)
		}
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigFile, writeFile(t, "http_port: 7000\nsession_secret: nope\n"))

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "unknown keys") || !strings.Contains(err.Error(), "session_secret") {
			t.Fatalf("expected unknown key error, got %v", err)
		}
	})

	t.Run("empty file is accepted", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigFile, writeFile(t, ""))

		if _, err := Load(); err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}
