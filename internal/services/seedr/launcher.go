package seedr

import "context"

// LaunchMode selects how the host should open a URL.
type LaunchMode int

const (
	LaunchSystemPreferred LaunchMode = iota
	LaunchPrivate
)

func (m LaunchMode) String() string {
	if m == LaunchPrivate {
		return "private"
	}
	return "system-preferred"
}

// Launcher opens URLs in a browser. It is supplied by the embedding application.
type Launcher interface {
	Open(ctx context.Context, url string, mode LaunchMode) bool
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, url string, mode LaunchMode) bool

func (f LauncherFunc) Open(ctx context.Context, url string, mode LaunchMode) bool {
	return f(ctx, url, mode)
}

type nopLauncher struct{}

func (nopLauncher) Open(context.Context, string, LaunchMode) bool { return false }
