package app

import (
	"context"
	"fmt"

	"github.com/ochronus/goseedr/internal/browser"
	"github.com/ochronus/goseedr/internal/config"
	"github.com/ochronus/goseedr/internal/services/seedr"
	"github.com/sirupsen/logrus"
)

// Container centralizes the core dependencies used across the application.
// It is intentionally small and uses interfaces so callers (and tests) can
// substitute implementations easily.
type Container struct {
	Config          *config.Config
	Logger          *logrus.Logger
	SeedrClient     seedr.ClientAPI
	Launcher        seedr.Launcher
	ValidateAccount bool
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithSeedrClient overrides the default Seedr client.
func WithSeedrClient(client seedr.ClientAPI) Option {
	return func(c *Container) error {
		if client == nil {
			return fmt.Errorf("seedr client cannot be nil")
		}
		c.SeedrClient = client
		return nil
	}
}

// WithLauncher overrides the browser launcher handed to the default Seedr client.
func WithLauncher(launcher seedr.Launcher) Option {
	return func(c *Container) error {
		if launcher == nil {
			return fmt.Errorf("launcher cannot be nil")
		}
		c.Launcher = launcher
		return nil
	}
}

// WithAccountValidation enables or disables the credential check against
// the Seedr account endpoint (default: disabled).
func WithAccountValidation(validate bool) Option {
	return func(c *Container) error {
		c.ValidateAccount = validate
		return nil
	}
}

// NewContainer builds a Container with sensible defaults derived from cfg.
// Options can be supplied to override specific dependencies (useful in tests).
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config: cfg,
		Logger: buildDefaultLogger(cfg.Loglevel),
	}

	// Apply options early so tests can inject mocks before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.Launcher == nil {
		container.Launcher = browser.New(
			browser.WithCommand(cfg.Browser.Command),
			browser.WithPrivateCommand(cfg.Browser.PrivateCommand),
			browser.WithLogger(container.Logger),
		)
	}

	if container.SeedrClient == nil {
		container.SeedrClient = seedr.NewClient(cfg.Email, cfg.Password, container.Launcher,
			seedr.WithBaseURL(cfg.BaseURL),
			seedr.WithTimeout(cfg.RequestTimeout()),
			seedr.WithLogger(container.Logger),
		)
	}

	if container.ValidateAccount {
		user, err := container.SeedrClient.GetUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to verify Seedr credentials: %w", err)
		}
		container.Logger.Debugf("authenticated as %s", user.Username)
	}

	return container, nil
}

func buildDefaultLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
