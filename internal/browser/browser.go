package browser

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ochronus/goseedr/internal/services/seedr"
	"github.com/sirupsen/logrus"
)

// Runner starts a command without waiting for it to exit.
type Runner func(ctx context.Context, name string, args ...string) error

// Launcher opens URLs with the host's browser.
type Launcher struct {
	command        []string
	privateCommand []string
	goos           string
	run            Runner
	logger         *logrus.Logger
}

var _ seedr.Launcher = (*Launcher)(nil)

// Option customizes a Launcher.
type Option func(*Launcher)

// WithCommand overrides the opener for system-preferred launches.
// The command is split on whitespace and the URL is appended.
func WithCommand(command string) Option {
	return func(l *Launcher) {
		l.command = strings.Fields(command)
	}
}

// WithPrivateCommand sets the command used for private launches.
func WithPrivateCommand(command string) Option {
	return func(l *Launcher) {
		l.privateCommand = strings.Fields(command)
	}
}

// WithRunner replaces process execution.
func WithRunner(run Runner) Option {
	return func(l *Launcher) {
		if run != nil {
			l.run = run
		}
	}
}

// WithGOOS picks the default opener for another platform.
func WithGOOS(goos string) Option {
	return func(l *Launcher) {
		l.goos = goos
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Launcher.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		goos:   runtime.GOOS,
		run:    startCommand,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open launches url and reports whether the opener could be started.
// Private mode fails when no private command is configured.
func (l *Launcher) Open(ctx context.Context, url string, mode seedr.LaunchMode) bool {
	if url == "" {
		return false
	}

	argv := l.commandFor(mode)
	if len(argv) == 0 {
		l.logger.Warnf("no browser command configured for %s launch", mode)
		return false
	}

	args := append(append([]string{}, argv[1:]...), url)
	if err := l.run(ctx, argv[0], args...); err != nil {
		l.logger.Errorf("failed to open browser with %s: %v", argv[0], err)
		return false
	}

	l.logger.Debugf("opened %s in browser (%s)", url, mode)
	return true
}

func (l *Launcher) commandFor(mode seedr.LaunchMode) []string {
	if mode == seedr.LaunchPrivate {
		return l.privateCommand
	}
	if len(l.command) > 0 {
		return l.command
	}
	return defaultCommand(l.goos)
}

func defaultCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

func startCommand(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The browser outlives the caller's context, so it is not bound to it.
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the opener in the background; its exit status is irrelevant.
	go cmd.Wait()
	return nil
}
