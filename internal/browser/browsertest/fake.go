// Package browsertest provides an in-memory Browser for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmylchreest/propharvest/internal/browser"
)

// Fake serves canned pages keyed by exact URL.
type Fake struct {
	// Pages maps a URL to the HTML served for it.
	Pages map[string]string
	// Redirects maps a URL to the location reported after navigating to it.
	// A redirect target does not need an entry in Pages.
	Redirects map[string]string
	// Failures maps a URL to the error Navigate returns for it. When the URL
	// also has a Redirects entry, the location moves there before the error
	// is returned, as when a page redirects and then times out.
	Failures map[string]error

	mu       sync.Mutex
	visits   []string
	options  []browser.NavigateOptions
	location string
	html     string
}

var _ browser.Browser = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Pages:     make(map[string]string),
		Redirects: make(map[string]string),
		Failures:  make(map[string]error),
	}
}

// Navigate records the visit and loads the canned page.
func (f *Fake) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.visits = append(f.visits, url)
	f.options = append(f.options, opts)

	if err := ctx.Err(); err != nil {
		return err
	}
	location, redirected := f.Redirects[url]
	if err, ok := f.Failures[url]; ok {
		if redirected {
			f.location = location
			f.html = ""
		}
		return err
	}

	html, ok := f.Pages[url]
	if !ok && !redirected {
		return fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	if !redirected {
		location = url
	}
	f.location = location
	f.html = html
	return nil
}

// Location returns the location of the last successful navigation.
func (f *Fake) Location(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.location == "" {
		return "", browser.ErrNoPage
	}
	return f.location, nil
}

// HTML returns the page of the last successful navigation.
func (f *Fake) HTML(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.location == "" {
		return "", browser.ErrNoPage
	}
	return f.html, nil
}

// Close is a no-op.
func (f *Fake) Close() error {
	return nil
}

// Type returns "fake".
func (f *Fake) Type() string {
	return "fake"
}

// Visits returns every URL passed to Navigate, in order.
func (f *Fake) Visits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visits...)
}

// VisitsWithPrefix counts navigations to URLs starting with prefix.
func (f *Fake) VisitsWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.visits {
		if strings.HasPrefix(v, prefix) {
			n++
		}
	}
	return n
}

// OptionsFor returns the options of the first navigation to url.
func (f *Fake) OptionsFor(url string) (browser.NavigateOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.visits {
		if v == url {
			return f.options[i], true
		}
	}
	return browser.NavigateOptions{}, false
}
