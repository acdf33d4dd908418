package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/propharvest/internal/dom"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// PageLoader produces a DOM snapshot for a URL.
type PageLoader interface {
	Load(ctx context.Context, url string, opts NavigateOptions) (*dom.Document, error)
}

// Loader navigates a Browser and snapshots the result.
type Loader struct {
	browser Browser
}

// NewLoader returns a Loader driving b.
func NewLoader(b Browser) *Loader {
	return &Loader{browser: b}
}

// Load navigates to url and returns the rendered document. Anti-bot pages
// are reported as ErrChallenge rather than handed to extraction.
func (l *Loader) Load(ctx context.Context, url string, opts NavigateOptions) (*dom.Document, error) {
	if err := l.browser.Navigate(ctx, url, opts); err != nil {
		return nil, err
	}

	html, err := l.browser.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	// Links on the page resolve against where we ended up.
	location := url
	if loc, err := l.browser.Location(ctx); err == nil && loc != "" {
		location = loc
	}

	doc, err := dom.Parse(location, html)
	if err != nil {
		return nil, err
	}

	if kind := detectChallengePage(doc.Title(), html); kind != "" {
		return nil, fmt.Errorf("%w: %s", ErrChallenge, kind)
	}
	if doc.URL() != url {
		logger.Debug("page redirected", "url", url, "location", doc.URL())
	}
	return doc, nil
}

// detectChallengePage returns the kind of interstitial served instead of the
// requested page, or "" for ordinary content. Only whole-page interstitials
// count: captcha widgets embedded in a real page (contact forms) do not.
func detectChallengePage(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	switch {
	case strings.Contains(titleLower, "just a moment"),
		strings.Contains(titleLower, "attention required"),
		strings.Contains(htmlLower, "cf_chl_opt"):
		return "cloudflare"
	case strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile"):
		return "cloudflare-turnstile"
	case strings.Contains(titleLower, "access denied"),
		strings.Contains(titleLower, "robot or human"):
		return "anti-bot"
	}
	return ""
}
