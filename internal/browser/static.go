package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/propharvest/internal/logger"
)

// Static fetches raw HTML with colly. It does not run JavaScript, so client
// side redirects never happen and every wait condition is the HTTP response.
type Static struct {
	cfg Config

	mu       sync.Mutex
	location string
	html     string
}

// NewStatic creates a static browser.
func NewStatic(cfg Config) *Static {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Static{cfg: cfg}
}

// Navigate performs a GET and keeps the body as the current page.
func (s *Static) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(opts.Timeout)

	var (
		location string
		body     string
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		// colly rewrites the request URL when it follows redirects.
		location = r.Request.URL.String()
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: status %d: %w", url, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", url, err)
	})

	logger.Debug("static navigating", "url", url, "timeout", opts.Timeout)
	err := c.Visit(url)
	if fetchErr != nil {
		return fetchErr
	}
	if err != nil {
		return fmt.Errorf("visit %s: %w", url, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = location
	s.html = body
	return nil
}

// Location returns the URL of the last response.
func (s *Static) Location(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == "" {
		return "", ErrNoPage
	}
	return s.location, nil
}

// HTML returns the body of the last response.
func (s *Static) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == "" {
		return "", ErrNoPage
	}
	return s.html, nil
}

// Close releases resources.
func (s *Static) Close() error {
	return nil
}

// Type returns the browser type.
func (s *Static) Type() string {
	return string(ModeStatic)
}
