package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is used when neither the config file nor the environment set one
const DefaultAPIURL = "http://localhost:8000/api"

// Config holds user preferences
type Config struct {
	APIURL             string        `yaml:"api_url" json:"api_url"`                         // Base URL of the SlotFlow API
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`         // Per-request HTTP timeout
	RefreshInterval    string        `yaml:"refresh_interval" json:"refresh_interval"`       // Cron spec for background refresh
	ConfirmDestructive bool          `yaml:"confirm_destructive" json:"confirm_destructive"` // Ask before cancel/delete

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.slotflow, or $SLOTFLOW_HOME when set
func Dir() (string, error) {
	if dir := os.Getenv("SLOTFLOW_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".slotflow"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	logPath := ""
	if dir, err := Dir(); err == nil {
		logPath = filepath.Join(dir, "logs", "slotflow.log")
	}

	timeout := 30 * time.Second
	if v := os.Getenv("SLOTFLOW_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	return &Config{
		APIURL:             getEnv("SLOTFLOW_API_URL", DefaultAPIURL),
		RequestTimeout:     timeout,
		RefreshInterval:    getEnv("SLOTFLOW_REFRESH", "@every 30s"),
		ConfirmDestructive: true,
		LogLevel:           getEnv("SLOTFLOW_LOG_LEVEL", "INFO"),
		LogFile:            getEnv("SLOTFLOW_LOG_FILE", logPath),
		LogConsole:         getEnv("SLOTFLOW_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// LoadDotEnv loads a .env file from the working directory if present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.slotflow/config.yaml. Environment variables
// override values from the file.
func Load() (*Config, error) {
	configPath, err := path()
	if err != nil {
		return nil, err
	}

	// Check if exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Return defaults if no config
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SLOTFLOW_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("SLOTFLOW_REFRESH"); v != "" {
		c.RefreshInterval = v
	}
	if v := os.Getenv("SLOTFLOW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SLOTFLOW_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("SLOTFLOW_LOG_CONSOLE"); v != "" {
		c.LogConsole = v == "true"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Save saves config to ~/.slotflow/config.yaml
func (c *Config) Save() error {
	configPath, err := path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
