package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmylchreest/propharvest/internal/browser"
	"github.com/jmylchreest/propharvest/internal/browser/browsertest"
)

type stubLocator struct {
	name  string
	pair  Pair
	err   error
	calls int
}

func (s *stubLocator) Locate(_ context.Context, _ string) (Pair, error) {
	s.calls++
	return s.pair, s.err
}

func (s *stubLocator) Name() string { return s.name }

// --- Resolver Tests ---

func TestResolver_FirstTierWins(t *testing.T) {
	first := &stubLocator{name: "first", pair: Pair{"41.3275", "19.8187"}}
	second := &stubLocator{name: "second", pair: Pair{"1.0", "2.0"}}

	got := NewResolver(first, second).Resolve(context.Background(), "Rruga e Kavajes, Tirane")
	if got != (Pair{"41.3275", "19.8187"}) {
		t.Errorf("Resolve() = %+v", got)
	}
	if second.calls != 0 {
		t.Errorf("second tier called %d times, want 0", second.calls)
	}
}

func TestResolver_FallsBack(t *testing.T) {
	first := &stubLocator{name: "first", err: ErrNoMatch}
	second := &stubLocator{name: "second", pair: Pair{"41.33", "19.82"}}

	got := NewResolver(first, second).Resolve(context.Background(), "Tirane")
	if got != (Pair{"41.33", "19.82"}) {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolver_InvalidPairFallsBack(t *testing.T) {
	first := &stubLocator{name: "first", pair: Pair{"41.33", ""}}
	second := &stubLocator{name: "second", pair: Pair{"41.33", "19.82"}}

	got := NewResolver(first, second).Resolve(context.Background(), "Tirane")
	if got != (Pair{"41.33", "19.82"}) {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolver_AllTiersFail(t *testing.T) {
	first := &stubLocator{name: "first", err: errors.New("navigation timeout")}
	second := &stubLocator{name: "second", err: ErrNoMatch}

	got := NewResolver(first, second).Resolve(context.Background(), "Nowhere")
	if !got.IsSentinel() {
		t.Errorf("Resolve() = %+v, want sentinel pair", got)
	}
}

func TestResolver_EmptyAddressShortCircuits(t *testing.T) {
	for _, addr := range []string{"", "   ", Sentinel} {
		tier := &stubLocator{name: "tier", pair: Pair{"1.0", "2.0"}}
		got := NewResolver(tier).Resolve(context.Background(), addr)
		if !got.IsSentinel() {
			t.Errorf("Resolve(%q) = %+v, want sentinel pair", addr, got)
		}
		if tier.calls != 0 {
			t.Errorf("Resolve(%q) called tier %d times", addr, tier.calls)
		}
	}
}

func TestResolver_NeverMixesSentinel(t *testing.T) {
	pairs := []Pair{
		{"41.3", "N/A"},
		{"N/A", "19.8"},
		{"abc", "19.8"},
		{"41.3", "19.8"},
	}
	for _, p := range pairs {
		got := NewResolver(&stubLocator{name: "tier", pair: p}).Resolve(context.Background(), "x")
		if !got.IsSentinel() && !got.Valid() {
			t.Errorf("Resolve() with tier pair %+v = %+v, mixed result", p, got)
		}
	}
}

// --- Pair Tests ---

func TestPair_Valid(t *testing.T) {
	tests := []struct {
		pair Pair
		want bool
	}{
		{Pair{"41.3275", "19.8187"}, true},
		{Pair{"-33.8688", "151.2093"}, true},
		{Pair{"41", "19"}, true},
		{Pair{"41.3275", ""}, false},
		{Pair{"N/A", "N/A"}, false},
		{Pair{"41.32.75", "19.8"}, false},
		{Pair{"+41.3", "19.8"}, false},
	}
	for _, tt := range tests {
		if got := tt.pair.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.pair, got, tt.want)
		}
	}
}

// --- MapSearch Tests ---

func TestParseMapURL(t *testing.T) {
	tests := []struct {
		url     string
		want    Pair
		wantErr bool
	}{
		{"https://www.google.com/maps/place/Tirana/@41.3275459,19.8186982,14z/data=!3m1", Pair{"41.3275459", "19.8186982"}, false},
		{"https://www.google.com/maps/search/x/@-33.8688,151.2093,12z", Pair{"-33.8688", "151.2093"}, false},
		{"https://www.google.com/maps/search/Rruga%20e%20Kavajes", Pair{}, true},
		{"https://www.google.com/maps/@41,19,14z", Pair{}, true},
	}
	for _, tt := range tests {
		got, err := ParseMapURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMapURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrNoMatch) {
			t.Errorf("ParseMapURL(%q) error = %v, want ErrNoMatch", tt.url, err)
		}
		if got != tt.want {
			t.Errorf("ParseMapURL(%q) = %+v, want %+v", tt.url, got, tt.want)
		}
	}
}

func TestMapSearch_LocateFromRedirect(t *testing.T) {
	fake := browsertest.New()
	search := DefaultMapSearchURL + "Rruga%20Myslym%20Shyri%2C%20Tiran%C3%AB"
	fake.Redirects[search] = "https://www.google.com/maps/place/Rruga+Myslym+Shyri/@41.3231,19.8102,17z"

	var slept time.Duration
	m := NewMapSearch(fake, WithSettleDelay(5*time.Second))
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	got, err := m.Locate(context.Background(), "Rruga Myslym Shyri, Tiranë")
	if err != nil {
		t.Fatalf("Locate() error = %v (visits %v)", err, fake.Visits())
	}
	if got != (Pair{"41.3231", "19.8102"}) {
		t.Errorf("Locate() = %+v", got)
	}
	if slept != 5*time.Second {
		t.Errorf("settle delay = %v, want 5s", slept)
	}

	opts, ok := fake.OptionsFor(search)
	if !ok {
		t.Fatalf("search URL not visited; visits %v", fake.Visits())
	}
	if opts.Wait != browser.WaitNetworkIdle {
		t.Errorf("Wait = %v, want network-idle", opts.Wait)
	}
}

func TestMapSearch_NoCoordinatesInURL(t *testing.T) {
	fake := browsertest.New()
	fake.Pages[DefaultMapSearchURL+"Tirane"] = "<html></html>"

	m := NewMapSearch(fake, WithSettleDelay(0))
	_, err := m.Locate(context.Background(), "Tirane")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestMapSearch_NavigationError(t *testing.T) {
	fake := browsertest.New()
	fake.Failures[DefaultMapSearchURL+"Tirane"] = errors.New("net::ERR_CONNECTION_RESET")

	m := NewMapSearch(fake, WithSettleDelay(0))
	if _, err := m.Locate(context.Background(), "Tirane"); err == nil {
		t.Error("expected navigation error")
	}
}

func TestMapSearch_TimeoutAfterRedirect(t *testing.T) {
	fake := browsertest.New()
	search := DefaultMapSearchURL + "Vlore"
	fake.Redirects[search] = "https://www.google.com/maps/place/Vlore/@40.4661,19.4914,13z"
	fake.Failures[search] = fmt.Errorf("navigate %s: %w", search, context.DeadlineExceeded)

	m := NewMapSearch(fake, WithSettleDelay(0))
	got, err := m.Locate(context.Background(), "Vlore")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got != (Pair{"40.4661", "19.4914"}) {
		t.Errorf("Locate() = %+v", got)
	}
}

func TestMapSearch_TimeoutKeepsPreviousLookup(t *testing.T) {
	fake := browsertest.New()
	fake.Redirects[DefaultMapSearchURL+"Vlore"] = "https://www.google.com/maps/place/Vlore/@40.4661,19.4914,13z"
	fake.Failures[DefaultMapSearchURL+"Fier"] = context.DeadlineExceeded

	m := NewMapSearch(fake, WithSettleDelay(0))
	if _, err := m.Locate(context.Background(), "Vlore"); err != nil {
		t.Fatalf("first Locate() error = %v", err)
	}
	// The tab still shows Vlore; those coordinates must not be reported for Fier.
	if got, err := m.Locate(context.Background(), "Fier"); err == nil {
		t.Errorf("Locate() = %+v, want error", got)
	}
}

func TestMapSearch_OtherErrorAfterRedirect(t *testing.T) {
	fake := browsertest.New()
	search := DefaultMapSearchURL + "Vlore"
	fake.Redirects[search] = "https://www.google.com/maps/place/Vlore/@40.4661,19.4914,13z"
	fake.Failures[search] = errors.New("net::ERR_CONNECTION_RESET")

	m := NewMapSearch(fake, WithSettleDelay(0))
	if _, err := m.Locate(context.Background(), "Vlore"); err == nil {
		t.Error("expected navigation error")
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() = %v, want context.Canceled", err)
	}
}

// --- Nominatim Tests ---

func TestNominatim_Locate(t *testing.T) {
	var gotUA, gotFormat, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotFormat = r.URL.Query().Get("format")
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"place_id":1,"lat":"41.3281482","lon":"19.8184435","display_name":"Tiranë"},{"lat":"0.0","lon":"0.0"}]`)
	}))
	defer srv.Close()

	n := NewNominatim(WithEndpoint(srv.URL), WithUserAgent("propharvest-test"))
	got, err := n.Locate(context.Background(), "Rruga e Durrësit & Tiranë")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got != (Pair{"41.3281482", "19.8184435"}) {
		t.Errorf("Locate() = %+v", got)
	}
	if gotUA != "propharvest-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotFormat != "json" {
		t.Errorf("format = %q", gotFormat)
	}
	if gotQuery != "Rruga e Durrësit & Tiranë" {
		t.Errorf("q = %q", gotQuery)
	}
}

func TestNominatim_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		noMatch bool
	}{
		{"empty array", http.StatusOK, `[]`, true},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, false},
		{"malformed json", http.StatusOK, `[{"lat":`, false},
		{"object instead of array", http.StatusOK, `{"lat":"1.0","lon":"2.0"}`, false},
		{"missing lon", http.StatusOK, `[{"lat":"41.3"}]`, false},
		{"non-decimal", http.StatusOK, `[{"lat":"north","lon":"east"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewNominatim(WithEndpoint(srv.URL)).Locate(context.Background(), "Tirane")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.noMatch != errors.Is(err, ErrNoMatch) {
				t.Errorf("errors.Is(err, ErrNoMatch) = %v for %v", !tt.noMatch, err)
			}
		})
	}
}

func TestNominatim_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := NewNominatim(WithEndpoint(endpoint)).Locate(context.Background(), "Tirane")
	if err == nil || !strings.Contains(err.Error(), "nominatim request failed") {
		t.Errorf("expected request failure, got %v", err)
	}
}

func TestNominatim_PacesRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `[{"lat":"1.5","lon":"2.5"}]`)
	}))
	defer srv.Close()

	n := NewNominatim(WithEndpoint(srv.URL), WithMinInterval(200*time.Millisecond))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := n.Locate(context.Background(), "Tirane"); err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Errorf("3 requests took %v, want at least 400ms of pacing", elapsed)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

// --- End-to-end Tests ---

func TestResolver_MapSearchThenNominatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"41.1","lon":"19.9"}]`)
	}))
	defer srv.Close()

	fake := browsertest.New()
	fake.Pages[DefaultMapSearchURL+"Durres"] = "<html></html>"

	r := NewResolver(
		NewMapSearch(fake, WithSettleDelay(0)),
		NewNominatim(WithEndpoint(srv.URL)),
	)
	got := r.Resolve(context.Background(), "Durres")
	if got != (Pair{"41.1", "19.9"}) {
		t.Errorf("Resolve() = %+v", got)
	}
	if len(fake.Visits()) != 1 {
		t.Errorf("visits = %v", fake.Visits())
	}
}
