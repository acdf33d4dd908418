package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap search endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

	// DefaultNominatimUserAgent identifies the harvester. The public
	// instance rejects requests without one.
	DefaultNominatimUserAgent = "Mozilla/5.0 (compatible; propharvest/1.0; +https://github.com/jmylchreest/propharvest)"

	maxResponseBytes = 1 << 20
)

// Nominatim looks addresses up with the OpenStreetMap geocoding API.
type Nominatim struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NominatimOption configures a Nominatim client.
type NominatimOption func(*Nominatim)

// WithEndpoint overrides the search endpoint.
func WithEndpoint(u string) NominatimOption {
	return func(n *Nominatim) { n.endpoint = u }
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) NominatimOption {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *Nominatim) { n.httpClient = c }
}

// WithMinInterval spaces consecutive requests at least d apart.
// 0 removes the limit.
func WithMinInterval(d time.Duration) NominatimOption {
	return func(n *Nominatim) {
		if d <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewNominatim returns a client allowing one request per second, the
// public instance's usage limit.
func NewNominatim(opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		endpoint:  DefaultNominatimURL,
		userAgent: DefaultNominatimUserAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns "nominatim".
func (n *Nominatim) Name() string {
	return "nominatim"
}

// Locate returns the first search result's coordinates.
func (n *Nominatim) Locate(ctx context.Context, address string) (Pair, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Pair{}, fmt.Errorf("nominatim rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to create nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Pair{}, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read nominatim response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Pair{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}
	return parseSearchResults(body)
}

// parseSearchResults reads lat/lon from the first element of a search
// response array.
func parseSearchResults(body []byte) (Pair, error) {
	if !gjson.ValidBytes(body) {
		return Pair{}, fmt.Errorf("nominatim returned malformed JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return Pair{}, fmt.Errorf("nominatim returned %s, want array", root.Type)
	}

	first := root.Get("0")
	if !first.Exists() {
		return Pair{}, ErrNoMatch
	}

	p := Pair{
		Latitude:  first.Get("lat").String(),
		Longitude: first.Get("lon").String(),
	}
	if !p.Valid() {
		return Pair{}, fmt.Errorf("nominatim result has invalid coordinates %q,%q", p.Latitude, p.Longitude)
	}
	return p, nil
}
