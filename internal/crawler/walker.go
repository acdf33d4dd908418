package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jmylchreest/propharvest/internal/browser"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// State is a pagination walk's position in its state machine.
type State int

const (
	// StateFetching loads the current page.
	StateFetching State = iota
	// StateAccumulating merges the page's links into the frontier.
	StateAccumulating
	// StateTerminated ends the walk.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateAccumulating:
		return "accumulating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StopReason explains why a walk terminated.
type StopReason string

const (
	// StopDuplicate: a page repeated an already discovered URL, meaning the
	// site has run out of results.
	StopDuplicate StopReason = "duplicate"
	// StopPageLimit: MaxPages pages were fetched.
	StopPageLimit StopReason = "page_limit"
	// StopBarrenLimit: MaxBarrenPages consecutive pages failed or were empty.
	StopBarrenLimit StopReason = "barren_limit"
	// StopCancelled: the context ended.
	StopCancelled StopReason = "cancelled"
	// StopInvalidURL: the base URL could not be paginated.
	StopInvalidURL StopReason = "invalid_url"
)

// WalkerConfig controls pagination.
type WalkerConfig struct {
	PageParam    string // query parameter carrying the page number
	StartPage    int
	LinkSelector string // anchors pointing at listings

	// MaxPages caps fetched pages (0 = unlimited).
	MaxPages int
	// MaxBarrenPages stops after this many consecutive failed or empty
	// pages (0 = unlimited).
	MaxBarrenPages int

	Timeout time.Duration // per-page navigation timeout
	Wait    browser.WaitCondition
}

// DefaultWalkerConfig returns the merrjep.al pagination settings.
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		PageParam:      "Page",
		StartPage:      1,
		LinkSelector:   "a.span2-ad-img-list",
		MaxPages:       500,
		MaxBarrenPages: 3,
		Timeout:        60 * time.Second,
		Wait:           browser.WaitNetworkIdle,
	}
}

// WalkSummary describes a finished walk.
type WalkSummary struct {
	BaseURL     string
	Pages       int // pages fetched, including failures
	FailedPages int
	Discovered  int
	Reason      StopReason
}

// Walker paginates a search until the results start repeating.
type Walker struct {
	loader browser.PageLoader
	cfg    WalkerConfig
}

// NewWalker returns a Walker loading pages through loader.
func NewWalker(loader browser.PageLoader, cfg WalkerConfig) *Walker {
	if cfg.StartPage < 1 {
		cfg.StartPage = 1
	}
	return &Walker{loader: loader, cfg: cfg}
}

// PageURL returns baseURL with the page parameter set to page.
func PageURL(baseURL, param string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("invalid base URL %q: not absolute", baseURL)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Discover walks baseURL's result pages and returns the frozen frontier of
// listing URLs in encounter order. The walk ends on the first href already
// in the frontier; hrefs after it on the same page are not considered.
func (w *Walker) Discover(ctx context.Context, baseURL string) (*Frontier, WalkSummary) {
	frontier := NewFrontier()
	summary := WalkSummary{BaseURL: baseURL}

	var (
		state  = StateFetching
		page   = w.cfg.StartPage
		barren int
		hrefs  []string
	)

	log := logger.With("base_url", baseURL)
	terminate := func(reason StopReason) {
		summary.Reason = reason
		state = StateTerminated
	}

	for state != StateTerminated {
		switch state {
		case StateFetching:
			if ctx.Err() != nil {
				terminate(StopCancelled)
				continue
			}
			if w.cfg.MaxPages > 0 && summary.Pages >= w.cfg.MaxPages {
				log.Warn("page limit reached before results repeated", "max_pages", w.cfg.MaxPages)
				terminate(StopPageLimit)
				continue
			}

			pageURL, err := PageURL(baseURL, w.cfg.PageParam, page)
			if err != nil {
				log.Error("cannot paginate", "error", err)
				terminate(StopInvalidURL)
				continue
			}

			log.Info("scraping page", "page", page, "url", pageURL)
			summary.Pages++
			hrefs, err = w.fetchLinks(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					terminate(StopCancelled)
					continue
				}
				// A failed page counts as empty, never as a repeat.
				summary.FailedPages++
				log.Warn("failed to scrape page", "page", page, "url", pageURL, "error", err)
				hrefs = nil
			}
			state = StateAccumulating

		case StateAccumulating:
			if len(hrefs) == 0 {
				barren++
				if w.cfg.MaxBarrenPages > 0 && barren >= w.cfg.MaxBarrenPages {
					log.Warn("too many failed or empty pages", "consecutive", barren)
					terminate(StopBarrenLimit)
					continue
				}
				page++
				state = StateFetching
				continue
			}
			barren = 0

			for _, href := range hrefs {
				if frontier.Contains(href) {
					log.Debug("repeated listing, pagination finished", "page", page, "url", href)
					terminate(StopDuplicate)
					break
				}
				frontier.Add(href)
			}
			if state != StateTerminated {
				page++
				state = StateFetching
			}
		}
	}

	frontier.Freeze()
	summary.Discovered = frontier.Len()
	log.Info("total unique property URLs found",
		"count", summary.Discovered,
		"pages", summary.Pages,
		"reason", summary.Reason)
	return frontier, summary
}

func (w *Walker) fetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	doc, err := w.loader.Load(ctx, pageURL, browser.NavigateOptions{
		Wait:    w.cfg.Wait,
		Timeout: w.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return doc.Links(w.cfg.LinkSelector), nil
}
