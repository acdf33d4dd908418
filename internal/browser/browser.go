// Package browser wraps the page automation engines used to render the
// classifieds site: a chromedp-driven Chrome tab for JavaScript-heavy pages
// and a colly-based static fetcher.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChallenge indicates the site answered with an anti-bot page.
	ErrChallenge = errors.New("challenge page detected")
	// ErrNoPage indicates the browser has not navigated anywhere yet.
	ErrNoPage = errors.New("no page loaded")
)

// WaitCondition tells Navigate when a page counts as loaded.
type WaitCondition int

const (
	// WaitLoad returns once the load event fired.
	WaitLoad WaitCondition = iota
	// WaitNetworkIdle additionally waits until at most two requests have
	// been in flight for half a second.
	WaitNetworkIdle
)

func (w WaitCondition) String() string {
	switch w {
	case WaitNetworkIdle:
		return "network-idle"
	default:
		return "load"
	}
}

// NavigateOptions controls a single navigation.
type NavigateOptions struct {
	Wait    WaitCondition
	Timeout time.Duration // 0 disables the timeout
}

// Browser is the automation collaborator. Implementations hold exactly one
// page; every call acts on the page left by the previous Navigate.
type Browser interface {
	// Navigate loads url and blocks until opts.Wait is satisfied.
	Navigate(ctx context.Context, url string, opts NavigateOptions) error

	// Location returns the current URL, after any redirects.
	Location(ctx context.Context) (string, error)

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error

	// Type returns "dynamic" or "static".
	Type() string
}

// Mode selects a Browser implementation.
type Mode string

const (
	ModeDynamic Mode = "dynamic"
	ModeStatic  Mode = "static"
)

// Config holds settings shared by both implementations.
type Config struct {
	Mode      Mode
	Headless  bool
	Stealth   bool   // inject evasion script and flags (dynamic only)
	UserAgent string
	ExecPath  string // Chrome binary; discovered when empty (dynamic only)
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// New starts a browser session of the configured mode.
func New(cfg Config) (Browser, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	switch cfg.Mode {
	case ModeDynamic, "":
		return NewChrome(cfg)
	case ModeStatic:
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown browser mode: %s (use 'dynamic' or 'static')", cfg.Mode)
	}
}
