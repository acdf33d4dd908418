package crawler

import (
	"context"
	"time"

	"github.com/jmylchreest/propharvest/internal/listing"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// Discoverer produces the listing URLs for a base search URL.
type Discoverer interface {
	Discover(ctx context.Context, baseURL string) (*Frontier, WalkSummary)
}

// ListingExtractor turns one listing URL into a record.
type ListingExtractor interface {
	Extract(ctx context.Context, url string) (*listing.Record, error)
}

// Sink persists the records harvested for one base URL.
type Sink interface {
	Write(ctx context.Context, baseURL string, records []listing.Record) error
	Name() string
}

// Report summarizes the harvest of one base URL.
type Report struct {
	BaseURL    string
	Walk       WalkSummary
	Extracted  int
	Skipped    int
	Cancelled  bool
	SinkErrors map[string]error
	Duration   time.Duration
}

// Orchestrator runs discovery, extraction and persistence for each base
// URL in turn. Nothing runs concurrently.
type Orchestrator struct {
	walker    Discoverer
	extractor ListingExtractor
	sinks     []Sink
}

// NewOrchestrator creates an Orchestrator writing to sinks.
func NewOrchestrator(walker Discoverer, extractor ListingExtractor, sinks ...Sink) *Orchestrator {
	return &Orchestrator{
		walker:    walker,
		extractor: extractor,
		sinks:     sinks,
	}
}

// Run harvests every base URL and returns one report per URL attempted.
// A failed listing is skipped; a failed sink is logged. After cancellation
// the records gathered so far are still written and later base URLs are
// not started.
func (o *Orchestrator) Run(ctx context.Context, baseURLs []string) []Report {
	reports := make([]Report, 0, len(baseURLs))
	for _, baseURL := range baseURLs {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, o.harvest(ctx, baseURL))
	}
	return reports
}

func (o *Orchestrator) harvest(ctx context.Context, baseURL string) Report {
	start := time.Now()
	logger.Info("scraping data from base URL", "base_url", baseURL)

	frontier, walk := o.walker.Discover(ctx, baseURL)
	report := Report{BaseURL: baseURL, Walk: walk}

	urls := frontier.URLs()
	records := make([]listing.Record, 0, len(urls))
	for i, u := range urls {
		if ctx.Err() != nil {
			report.Cancelled = true
			report.Skipped += len(urls) - i
			logger.Warn("harvest cancelled", "base_url", baseURL, "remaining", len(urls)-i)
			break
		}

		logger.Info("scraping property", "index", i+1, "total", len(urls), "url", u)
		rec, err := o.extractor.Extract(ctx, u)
		if err != nil || rec == nil {
			report.Skipped++
			logger.Error("error scraping property", "url", u, "error", err)
			continue
		}
		records = append(records, *rec)
	}
	report.Extracted = len(records)
	if walk.Reason == StopCancelled {
		report.Cancelled = true
	}

	// Partial results are still worth keeping after an interrupt.
	writeCtx := context.WithoutCancel(ctx)
	for _, sink := range o.sinks {
		if err := sink.Write(writeCtx, baseURL, records); err != nil {
			if report.SinkErrors == nil {
				report.SinkErrors = make(map[string]error)
			}
			report.SinkErrors[sink.Name()] = err
			logger.Error("failed to write records", "sink", sink.Name(), "base_url", baseURL, "error", err)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("base URL finished",
		"base_url", baseURL,
		"discovered", walk.Discovered,
		"extracted", report.Extracted,
		"skipped", report.Skipped,
		"duration", report.Duration.Round(time.Millisecond))
	return report
}
