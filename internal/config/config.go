package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	DefaultBaseURL     = "https://www.seedr.cc/rest"
	DefaultTimeout     = 30
	DefaultServiceName = "goseedr"
	MinTimeout         = 1
	MaxTimeout         = 3600
)

// Environment variables that override the configuration file.
const (
	EnvEmail        = "SEEDR_EMAIL"
	EnvPassword     = "SEEDR_PASSWORD"
	EnvLoglevel     = "SEEDR_LOGLEVEL"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config represents the main application configuration
type Config struct {
	Email     string          `toml:"email" validate:"required,email"`
	Password  string          `toml:"password" validate:"required"`
	Loglevel  string          `toml:"loglevel"`
	BaseURL   string          `toml:"base_url" validate:"required,url"`
	Timeout   int             `toml:"timeout"`
	Browser   BrowserConfig   `toml:"browser"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// BrowserConfig selects the commands used to open download links
type BrowserConfig struct {
	Command        string `toml:"command"`
	PrivateCommand string `toml:"private_command"`
}

// BridgeConfig holds the Transmission RPC bridge settings
type BridgeConfig struct {
	BindAddress       string `toml:"bind_address" validate:"required"`
	Port              int    `toml:"port"`
	Username          string `toml:"username" validate:"required"`
	Password          string `toml:"password" validate:"required"`
	DownloadDirectory string `toml:"download_directory" validate:"required"`
}

// TelemetryConfig holds OpenTelemetry exporter settings
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Loglevel: "info",
		BaseURL:  DefaultBaseURL,
		Timeout:  DefaultTimeout,
		Bridge: BridgeConfig{
			BindAddress:       "0.0.0.0",
			Port:              9091,
			DownloadDirectory: "/downloads",
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
	}
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "goseedr")

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads configuration from a TOML file on fsys and applies environment
// overrides. A missing file is not an error when the credentials come from the
// environment.
func Load(fsys afero.Fs, configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fsys, configPath)
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv(EnvEmail) != "":
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadDotEnv loads variables from .env files in the working directory.
// Variables already present in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields with the SEEDR_* and OTEL_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvLoglevel); v != "" {
		c.Loglevel = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.StructExcept(c, "Bridge"); err != nil {
		return validationError(err)
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base_url must be an http or https URL")
	}
	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout must be between %d and %d seconds", MinTimeout, MaxTimeout)
	}
	if c.Telemetry.OTLPEndpoint != "" {
		if _, err := url.ParseRequestURI(c.Telemetry.OTLPEndpoint); err != nil {
			return fmt.Errorf("telemetry.otlp_endpoint is invalid: %v", err)
		}
	}

	return nil
}

// ValidateBridge checks the settings needed to serve the Transmission bridge
func (c *Config) ValidateBridge() error {
	if err := validate.Struct(c.Bridge); err != nil {
		return validationError(err, "bridge.")
	}
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535")
	}
	return nil
}

// validationError reports the first failed field with its TOML name.
func validationError(err error, prefix ...string) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fe := errs[0]
	name := tomlName(fe.Field())
	if len(prefix) > 0 {
		name = prefix[0] + name
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "email":
		return fmt.Errorf("%s must be a valid email address", name)
	case "url":
		return fmt.Errorf("%s must be a valid URL", name)
	default:
		return fmt.Errorf("%s failed %s validation", name, fe.Tag())
	}
}

var tomlNames = map[string]string{
	"Email":             "email",
	"Password":          "password",
	"BaseURL":           "base_url",
	"BindAddress":       "bind_address",
	"Username":          "username",
	"DownloadDirectory": "download_directory",
}

func tomlName(field string) string {
	if name, ok := tomlNames[field]; ok {
		return name
	}
	return field
}
