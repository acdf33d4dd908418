package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/propharvest/internal/browser"
	"github.com/jmylchreest/propharvest/internal/geo"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// CoordinateResolver turns an address into coordinates. It must not fail;
// unknown addresses resolve to the sentinel pair.
type CoordinateResolver interface {
	Resolve(ctx context.Context, address string) geo.Pair
}

// ExtractorConfig controls listing page fetches.
type ExtractorConfig struct {
	// Delay is slept before every listing fetch.
	Delay time.Duration
	// Timeout bounds each listing navigation. 0 waits indefinitely.
	Timeout time.Duration
	Wait    browser.WaitCondition
}

// DefaultExtractorConfig returns a 2s pacing delay and no timeout.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Delay:   2 * time.Second,
		Timeout: 0,
		Wait:    browser.WaitNetworkIdle,
	}
}

// Extractor fetches listing pages and builds records from them.
type Extractor struct {
	loader   browser.PageLoader
	schema   *Schema
	resolver CoordinateResolver
	cfg      ExtractorConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExtractor returns an Extractor. resolver may be nil, in which case
// coordinates stay sentinels.
func NewExtractor(loader browser.PageLoader, schema *Schema, resolver CoordinateResolver, cfg ExtractorConfig) *Extractor {
	return &Extractor{
		loader:   loader,
		schema:   schema,
		resolver: resolver,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// Extract fetches url and returns its record. It returns an error only when
// the page itself could not be loaded; missing fields become sentinels.
func (e *Extractor) Extract(ctx context.Context, url string) (*Record, error) {
	if err := e.sleep(ctx, e.cfg.Delay); err != nil {
		return nil, err
	}

	doc, err := e.loader.Load(ctx, url, browser.NavigateOptions{
		Wait:    e.cfg.Wait,
		Timeout: e.cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", url, err)
	}

	rec := e.schema.Extract(doc, url)

	if e.resolver != nil {
		coords := e.resolver.Resolve(ctx, rec.Address)
		if coords.IsSentinel() && rec.Address != Sentinel {
			logger.Warn("address not geolocated", "url", url, "address", rec.Address)
		}
		rec.SetCoordinates(coords)
	}

	logger.Debug("listing extracted",
		"url", url,
		"name", rec.Name,
		"price", rec.Price,
		"latitude", rec.Latitude,
		"longitude", rec.Longitude)
	return &rec, nil
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
