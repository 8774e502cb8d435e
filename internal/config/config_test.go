package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Queue.MaxAttempts != 10 {
		t.Fatalf("Queue.MaxAttempts = %d, want 10", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.RetryInterval != 30*time.Second {
		t.Fatalf("Queue.RetryInterval = %v, want 30s", cfg.Queue.RetryInterval)
	}
	if cfg.Power.IdleTimeout != 30*time.Minute {
		t.Fatalf("Power.IdleTimeout = %v, want 30m", cfg.Power.IdleTimeout)
	}
	if cfg.Language != "de" {
		t.Fatalf("Language = %q, want %q", cfg.Language, "de")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
printer:
  type: serial
  serial_port: /dev/ttyS1
queue:
  max_attempts: 5
language: en
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Printer.Type != "serial" {
		t.Fatalf("Printer.Type = %q, want %q", cfg.Printer.Type, "serial")
	}
	if cfg.Printer.SerialPort != "/dev/ttyS1" {
		t.Fatalf("Printer.SerialPort = %q, want %q", cfg.Printer.SerialPort, "/dev/ttyS1")
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Fatalf("Queue.MaxAttempts = %d, want 5", cfg.Queue.MaxAttempts)
	}
	if cfg.Language != "en" {
		t.Fatalf("Language = %q, want %q", cfg.Language, "en")
	}
	// Untouched sections keep their defaults.
	if cfg.Queue.RetryInterval != 30*time.Second {
		t.Fatalf("Queue.RetryInterval = %v, want default 30s", cfg.Queue.RetryInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TODOPRINT_PORT", "9999")
	t.Setenv("TODOPRINT_LANGUAGE", "en")
	t.Setenv("TODOPRINT_MAX_ATTEMPTS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Language != "en" {
		t.Fatalf("Language = %q, want %q", cfg.Language, "en")
	}
	if cfg.Queue.MaxAttempts != 7 {
		t.Fatalf("Queue.MaxAttempts = %d, want 7", cfg.Queue.MaxAttempts)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad printer type", func(c *Config) { c.Printer.Type = "usb" }},
		{"no serial port", func(c *Config) { c.Printer.Type = "serial"; c.Printer.SerialPort = "" }},
		{"zero max attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }},
		{"zero retry interval", func(c *Config) { c.Queue.RetryInterval = 0 }},
		{"bad language", func(c *Config) { c.Language = "fr" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"power enabled without broker", func(c *Config) { c.Power.Enabled = true; c.Power.Broker = "" }},
	}

	for _, c := range cases {
		cfg := defaults()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: Validate accepted invalid config", c.name)
		}
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
