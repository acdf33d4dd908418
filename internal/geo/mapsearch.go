package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jmylchreest/propharvest/internal/browser"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// DefaultMapSearchURL is the search endpoint the address is appended to.
const DefaultMapSearchURL = "https://www.google.com/maps/search/"

// The maps app rewrites its URL to .../@<lat>,<lon>,<zoom>z once it has
// settled on a place.
var mapCoordsRE = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)

// MapSearch navigates a browser to a map search and reads the coordinates
// out of the URL the page redirects to.
type MapSearch struct {
	browser browser.Browser
	baseURL string
	settle  time.Duration
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// MapSearchOption configures a MapSearch.
type MapSearchOption func(*MapSearch)

// WithSearchURL overrides the search endpoint.
func WithSearchURL(u string) MapSearchOption {
	return func(m *MapSearch) { m.baseURL = u }
}

// WithSettleDelay sets how long to wait after load for client-side redirects.
func WithSettleDelay(d time.Duration) MapSearchOption {
	return func(m *MapSearch) { m.settle = d }
}

// WithNavigateTimeout bounds the map navigation. 0 disables the timeout.
func WithNavigateTimeout(d time.Duration) MapSearchOption {
	return func(m *MapSearch) { m.timeout = d }
}

// NewMapSearch returns a map search tier driving b.
func NewMapSearch(b browser.Browser, opts ...MapSearchOption) *MapSearch {
	m := &MapSearch{
		browser: b,
		baseURL: DefaultMapSearchURL,
		settle:  5 * time.Second,
		timeout: 30 * time.Second,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "map-search".
func (m *MapSearch) Name() string {
	return "map-search"
}

// Locate searches for address and parses the settled URL.
func (m *MapSearch) Locate(ctx context.Context, address string) (Pair, error) {
	target := m.searchURL(address)
	// Location of the previous lookup; it must not be mistaken for this one.
	previous, _ := m.browser.Location(ctx)

	err := m.browser.Navigate(ctx, target, browser.NavigateOptions{
		Wait:    browser.WaitNetworkIdle,
		Timeout: m.timeout,
	})
	if err != nil {
		// The map often keeps streaming tiles past the timeout after it has
		// already redirected to the place URL.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if p, ok := m.settledBeforeTimeout(ctx, previous); ok {
				logger.Debug("map search timed out after redirect", "address", address)
				return p, nil
			}
		}
		return Pair{}, fmt.Errorf("map search: %w", err)
	}

	if err := m.sleep(ctx, m.settle); err != nil {
		return Pair{}, err
	}

	location, err := m.browser.Location(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("map search: %w", err)
	}
	return ParseMapURL(location)
}

func (m *MapSearch) settledBeforeTimeout(ctx context.Context, previous string) (Pair, bool) {
	location, err := m.browser.Location(ctx)
	if err != nil || location == previous {
		return Pair{}, false
	}
	p, err := ParseMapURL(location)
	return p, err == nil
}

func (m *MapSearch) searchURL(address string) string {
	// Path-style escaping: spaces become %20, not +.
	return m.baseURL + strings.ReplaceAll(url.QueryEscape(address), "+", "%20")
}

// ParseMapURL extracts the first @lat,lon pair embedded in a map URL.
func ParseMapURL(u string) (Pair, error) {
	m := mapCoordsRE.FindStringSubmatch(u)
	if m == nil {
		return Pair{}, ErrNoMatch
	}
	return Pair{Latitude: m[1], Longitude: m[2]}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
