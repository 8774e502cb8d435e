package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is an immutable snapshot of the daemon configuration. Load returns
// a fresh value each time; components receive the sub-struct they need at
// construction and are rebuilt, never mutated, when settings change.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Printer    PrinterConfig    `yaml:"printer"`
	Power      PowerConfig      `yaml:"power"`
	Queue      QueueConfig      `yaml:"queue"`
	Motivation MotivationConfig `yaml:"motivation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Language   string           `yaml:"language" env:"TODOPRINT_LANGUAGE"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" env:"TODOPRINT_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"TODOPRINT_DB_PATH"`
}

type PrinterConfig struct {
	// Type selects the transport: "network" or "serial".
	Type    string `yaml:"type" env:"TODOPRINT_PRINTER_TYPE"`
	Address string `yaml:"address" env:"TODOPRINT_PRINTER_ADDRESS"`
	Port    int    `yaml:"port" env:"TODOPRINT_PRINTER_PORT"`

	SerialPort string `yaml:"serial_port" env:"TODOPRINT_PRINTER_SERIAL_PORT"`
	BaudRate   int    `yaml:"baud_rate"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type PowerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"TODOPRINT_POWER_ENABLED"`
	Broker   string `yaml:"broker" env:"TODOPRINT_MQTT_BROKER"`
	Port     int    `yaml:"port" env:"TODOPRINT_MQTT_PORT"`
	Username string `yaml:"username" env:"TODOPRINT_MQTT_USERNAME"`
	Password string `yaml:"password" env:"TODOPRINT_MQTT_PASSWORD"`

	TopicBeforePrint    string `yaml:"topic_before_print"`
	PayloadBeforePrint  string `yaml:"payload_before_print"`
	TopicAfterTimeout   string `yaml:"topic_after_timeout"`
	PayloadAfterTimeout string `yaml:"payload_after_timeout"`

	// Wait is how long to let the printer power up after before_print.
	Wait time.Duration `yaml:"wait"`
	// IdleTimeout is how long after the last delivery the after_timeout
	// signal fires.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type QueueConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"TODOPRINT_MAX_ATTEMPTS"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"TODOPRINT_RETRY_INTERVAL"`
	JobDelay      time.Duration `yaml:"job_delay"`
	FetchLimit    int           `yaml:"fetch_limit"`
}

type MotivationConfig struct {
	Enabled bool          `yaml:"enabled" env:"TODOPRINT_MOTIVATION_ENABLED"`
	APIKey  string        `yaml:"api_key" env:"TODOPRINT_OPENAI_API_KEY"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"TODOPRINT_LOG_LEVEL"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/todoprint.db",
		},
		Printer: PrinterConfig{
			Type:           "network",
			Address:        "192.168.1.100",
			Port:           9100,
			SerialPort:     "/dev/ttyUSB0",
			BaudRate:       19200,
			ConnectTimeout: 10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Power: PowerConfig{
			Enabled:             false,
			Broker:              "localhost",
			Port:                1883,
			TopicBeforePrint:    "printer/before_print",
			PayloadBeforePrint:  `{"action": "power_on"}`,
			TopicAfterTimeout:   "printer/after_timeout",
			PayloadAfterTimeout: `{"action": "power_off"}`,
			Wait:                5 * time.Second,
			IdleTimeout:         30 * time.Minute,
		},
		Queue: QueueConfig{
			MaxAttempts:   10,
			RetryInterval: 30 * time.Second,
			JobDelay:      2 * time.Second,
			FetchLimit:    5,
		},
		Motivation: MotivationConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Language: "de",
	}
}

// Load reads the YAML file at configPath (a missing file falls back to
// defaults), applies TODOPRINT_* environment overrides, and validates.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	switch c.Printer.Type {
	case "network":
		if c.Printer.Address == "" {
			return fmt.Errorf("printer address is required for network transport")
		}
	case "serial":
		if c.Printer.SerialPort == "" {
			return fmt.Errorf("serial port is required for serial transport")
		}
	default:
		return fmt.Errorf("invalid printer type: %s (valid: network, serial)", c.Printer.Type)
	}

	if c.Printer.ConnectTimeout < 0 || c.Printer.WriteTimeout < 0 {
		return fmt.Errorf("printer timeouts must be non-negative")
	}

	if c.Power.Enabled {
		if c.Power.Broker == "" {
			return fmt.Errorf("mqtt broker is required when power control is enabled")
		}
		if c.Power.Port < 1 || c.Power.Port > 65535 {
			return fmt.Errorf("mqtt port must be between 1 and 65535, got %d", c.Power.Port)
		}
		if c.Power.Wait < 0 {
			return fmt.Errorf("power wait must be non-negative")
		}
		if c.Power.IdleTimeout <= 0 {
			return fmt.Errorf("power idle timeout must be positive")
		}
	}

	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.Queue.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive")
	}
	if c.Queue.JobDelay < 0 {
		return fmt.Errorf("job delay must be non-negative")
	}
	if c.Queue.FetchLimit < 1 {
		return fmt.Errorf("fetch limit must be at least 1")
	}

	if c.Motivation.Timeout <= 0 {
		return fmt.Errorf("motivation timeout must be positive")
	}

	if c.Language != "de" && c.Language != "en" {
		return fmt.Errorf("unsupported language: %s (valid: de, en)", c.Language)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
