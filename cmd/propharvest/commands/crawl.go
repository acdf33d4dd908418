package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/propharvest/internal/browser"
	"github.com/jmylchreest/propharvest/internal/config"
	"github.com/jmylchreest/propharvest/internal/crawler"
	"github.com/jmylchreest/propharvest/internal/geo"
	"github.com/jmylchreest/propharvest/internal/listing"
	"github.com/jmylchreest/propharvest/internal/logger"
	"github.com/jmylchreest/propharvest/internal/output"
	"github.com/jmylchreest/propharvest/internal/store"
	"github.com/jmylchreest/propharvest/internal/version"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [base-url...]",
	Short: "Harvest every listing reachable from the base search URLs",
	Long: `Crawl paginates each base search URL (?Page=1, ?Page=2, ...) until a
listing repeats, then visits every discovered listing, resolves its address
to coordinates and writes one file per base URL.

Base URLs given as arguments replace the configured base_urls.

Examples:
  # Default category, default settings
  propharvest crawl

  # Stop after 10 result pages and skip the map search
  propharvest crawl --max-pages 10 --map-search=false

  # Visible browser for debugging selectors
  propharvest crawl --headless=false --debug`,
	RunE: runCrawl,
}

// crawlFlagKeys maps crawl flags to their configuration keys.
var crawlFlagKeys = map[string]string{
	"mode":             "browser.mode",
	"headless":         "browser.headless",
	"stealth":          "browser.stealth",
	"user-agent":       "browser.user_agent",
	"chrome-path":      "browser.exec_path",
	"max-pages":        "pagination.max_pages",
	"max-barren-pages": "pagination.max_barren_pages",
	"page-timeout":     "pagination.timeout",
	"delay":            "extraction.delay",
	"listing-timeout":  "extraction.timeout",
	"map-search":       "geo.map_search",
	"settle-delay":     "geo.settle_delay",
	"nominatim":        "geo.nominatim",
	"output-dir":       "output.dir",
	"format":           "output.format",
	"sheet":            "output.sheet",
	"pretty":           "output.pretty",
	"indent":           "output.indent",
	"postgres-dsn":     "postgres.dsn",
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	d := config.Default()
	flags := crawlCmd.Flags()

	// Browser settings
	flags.String("mode", d.Browser.Mode, "browser mode: dynamic, static")
	flags.Bool("headless", d.Browser.Headless, "run Chrome without a window (dynamic mode)")
	flags.Bool("stealth", d.Browser.Stealth, "enable anti-bot detection evasion (dynamic mode)")
	flags.String("user-agent", d.Browser.UserAgent, "browser user agent (default: desktop Chrome)")
	flags.String("chrome-path", d.Browser.ExecPath, "Chrome binary (default: discovered)")

	// Pagination settings
	flags.Int("max-pages", d.Pagination.MaxPages, "max result pages per base URL (0=unlimited)")
	flags.Int("max-barren-pages", d.Pagination.MaxBarrenPages, "stop after this many consecutive failed or empty pages (0=never)")
	flags.Duration("page-timeout", d.Pagination.Timeout, "result page navigation timeout")

	// Extraction settings
	flags.Duration("delay", d.Extraction.Delay, "delay before each listing fetch")
	flags.Duration("listing-timeout", d.Extraction.Timeout, "listing navigation timeout (0=none)")

	// Geolocation settings
	flags.Bool("map-search", d.Geo.MapSearch, "resolve coordinates from the map search redirect first")
	flags.Duration("settle-delay", d.Geo.SettleDelay, "wait after the map search loads")
	flags.Bool("nominatim", d.Geo.Nominatim, "fall back to the Nominatim geocoder")

	// Output settings
	flags.StringP("output-dir", "o", d.Output.Dir, "output directory")
	flags.StringP("format", "f", d.Output.Format, "output format: "+formatList())
	flags.String("sheet", d.Output.Sheet, "xlsx worksheet name")
	flags.Bool("pretty", d.Output.Pretty, "indent json output")
	flags.String("indent", d.Output.Indent, "indentation unit for pretty json")
	flags.String("postgres-dsn", d.Postgres.DSN, "also upsert listings into this Postgres database")

	// Bind to viper
	for flag, key := range crawlFlagKeys {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	// Initialize logger based on flags
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.BaseURLs = args
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := browser.New(browserConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()
	logger.Debug("browser started", "type", b.Type())

	loader := browser.NewLoader(b)
	walker := crawler.NewWalker(loader, walkerConfig(cfg))
	extractor := listing.NewExtractor(
		loader,
		listing.NewSchema(cfg.Selectors),
		geo.NewResolver(geoTiers(cfg, b)...),
		listing.ExtractorConfig{
			Delay:   cfg.Extraction.Delay,
			Timeout: cfg.Extraction.Timeout,
			Wait:    browser.WaitNetworkIdle,
		},
	)

	sinks := []crawler.Sink{
		output.NewFileSink(cfg.Output.Dir, output.Format(cfg.Output.Format), writerOptions(cfg)...),
	}
	if cfg.Postgres.DSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Error("postgres sink disabled", "error", err)
		} else {
			defer pg.Close()
			sinks = append(sinks, pg)
		}
	}

	start := time.Now()
	reports := crawler.NewOrchestrator(walker, extractor, sinks...).Run(ctx, cfg.BaseURLs)
	printSummary(reports, time.Since(start))
	return nil
}

func browserConfig(cfg config.Config) browser.Config {
	return browser.Config{
		Mode:      browser.Mode(cfg.Browser.Mode),
		Headless:  cfg.Browser.Headless,
		Stealth:   cfg.Browser.Stealth,
		UserAgent: cfg.Browser.UserAgent,
		ExecPath:  cfg.Browser.ExecPath,
	}
}

func writerOptions(cfg config.Config) []output.WriterOption {
	return []output.WriterOption{
		output.WithSheetName(cfg.Output.Sheet),
		output.WithPretty(cfg.Output.Pretty),
		output.WithIndent(cfg.Output.Indent),
	}
}

func walkerConfig(cfg config.Config) crawler.WalkerConfig {
	return crawler.WalkerConfig{
		PageParam:      cfg.Pagination.PageParam,
		StartPage:      cfg.Pagination.StartPage,
		LinkSelector:   cfg.Pagination.LinkSelector,
		MaxPages:       cfg.Pagination.MaxPages,
		MaxBarrenPages: cfg.Pagination.MaxBarrenPages,
		Timeout:        cfg.Pagination.Timeout,
		Wait:           browser.WaitNetworkIdle,
	}
}

// geoTiers builds the enabled resolution tiers, most accurate first. The
// map search shares the harvest's browser.
func geoTiers(cfg config.Config, b browser.Browser) []geo.Locator {
	var tiers []geo.Locator
	if cfg.Geo.MapSearch {
		tiers = append(tiers, geo.NewMapSearch(b,
			geo.WithSearchURL(cfg.Geo.MapSearchURL),
			geo.WithSettleDelay(cfg.Geo.SettleDelay),
			geo.WithNavigateTimeout(cfg.Geo.MapTimeout),
		))
	}
	if cfg.Geo.Nominatim {
		ua := cfg.Geo.UserAgent
		if ua == "" {
			ua = version.UserAgent()
		}
		tiers = append(tiers, geo.NewNominatim(
			geo.WithEndpoint(cfg.Geo.NominatimURL),
			geo.WithUserAgent(ua),
			geo.WithMinInterval(cfg.Geo.MinInterval),
		))
	}
	return tiers
}

func formatList() string {
	formats := output.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func printSummary(reports []crawler.Report, elapsed time.Duration) {
	var discovered, extracted, skipped int
	for _, r := range reports {
		discovered += r.Walk.Discovered
		extracted += r.Extracted
		skipped += r.Skipped
		if r.Cancelled {
			logInfo("Interrupted: %s", r.BaseURL)
		}
		for sink, err := range r.SinkErrors {
			logInfo("Sink %s failed for %s: %v", sink, r.BaseURL, err)
		}
	}
	logInfo("Harvested %s of %s listings from %d base URL(s) in %s (%s skipped)",
		humanize.Comma(int64(extracted)),
		humanize.Comma(int64(discovered)),
		len(reports),
		elapsed.Round(time.Second),
		humanize.Comma(int64(skipped)))
}
