// Package config defines the harvester's settings and loads them from
// viper (file, environment and flags).
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jmylchreest/propharvest/internal/listing"
)

// DefaultBaseURL is the merrjep.al rooms-for-rent category.
const DefaultBaseURL = "https://www.merrjep.al/njoftime/imobiliare-vendbanime/cimer-cimere/me-qera"

// Config is the complete harvester configuration.
type Config struct {
	BaseURLs   []string          `mapstructure:"base_urls" yaml:"base_urls" validate:"required,min=1,dive,url"`
	Browser    BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Pagination PaginationConfig  `mapstructure:"pagination" yaml:"pagination"`
	Extraction ExtractionConfig  `mapstructure:"extraction" yaml:"extraction"`
	Geo        GeoConfig         `mapstructure:"geo" yaml:"geo"`
	Output     OutputConfig      `mapstructure:"output" yaml:"output"`
	Postgres   PostgresConfig    `mapstructure:"postgres" yaml:"postgres"`
	Selectors  listing.Selectors `mapstructure:"selectors" yaml:"selectors"`
}

// BrowserConfig selects and tunes the page automation engine.
type BrowserConfig struct {
	Mode      string `mapstructure:"mode" yaml:"mode" validate:"oneof=dynamic static"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	Stealth   bool   `mapstructure:"stealth" yaml:"stealth"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
}

// PaginationConfig controls the search results walk.
type PaginationConfig struct {
	PageParam      string        `mapstructure:"page_param" yaml:"page_param" validate:"required"`
	StartPage      int           `mapstructure:"start_page" yaml:"start_page" validate:"gte=1"`
	LinkSelector   string        `mapstructure:"link_selector" yaml:"link_selector" validate:"required"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages" validate:"gte=0"`
	MaxBarrenPages int           `mapstructure:"max_barren_pages" yaml:"max_barren_pages" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// ExtractionConfig controls listing page fetches.
type ExtractionConfig struct {
	Delay   time.Duration `mapstructure:"delay" yaml:"delay" validate:"gte=0"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// GeoConfig controls coordinate resolution.
type GeoConfig struct {
	MapSearch    bool          `mapstructure:"map_search" yaml:"map_search"`
	MapSearchURL string        `mapstructure:"map_search_url" yaml:"map_search_url" validate:"required_if=MapSearch true,omitempty,url"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay" validate:"gte=0"`
	MapTimeout   time.Duration `mapstructure:"map_timeout" yaml:"map_timeout" validate:"gte=0"`

	Nominatim    bool          `mapstructure:"nominatim" yaml:"nominatim"`
	NominatimURL string        `mapstructure:"nominatim_url" yaml:"nominatim_url" validate:"required_if=Nominatim true,omitempty,url"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MinInterval  time.Duration `mapstructure:"min_interval" yaml:"min_interval" validate:"gte=0"`
}

// OutputConfig controls the file sink.
type OutputConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=xlsx json jsonl yaml"`
	Sheet  string `mapstructure:"sheet" yaml:"sheet" validate:"required,max=31"`
	// Pretty indents json documents by Indent.
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	Indent string `mapstructure:"indent" yaml:"indent" validate:"required_if=Pretty true"`
}

// PostgresConfig enables the database sink when DSN is set.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Default returns the settings that reproduce a plain merrjep.al harvest.
func Default() Config {
	return Config{
		BaseURLs: []string{DefaultBaseURL},
		Browser: BrowserConfig{
			Mode:     "dynamic",
			Headless: true,
		},
		Pagination: PaginationConfig{
			PageParam:      "Page",
			StartPage:      1,
			LinkSelector:   "a.span2-ad-img-list",
			MaxPages:       500,
			MaxBarrenPages: 3,
			Timeout:        60 * time.Second,
		},
		Extraction: ExtractionConfig{
			Delay:   2 * time.Second,
			Timeout: 0,
		},
		Geo: GeoConfig{
			MapSearch:    true,
			MapSearchURL: "https://www.google.com/maps/search/",
			SettleDelay:  5 * time.Second,
			MapTimeout:   30 * time.Second,
			Nominatim:    true,
			NominatimURL: "https://nominatim.openstreetmap.org/search",
			MinInterval:  time.Second,
		},
		Output: OutputConfig{
			Dir:    "output",
			Format: "xlsx",
			Sheet:  "Properties",
			Pretty: true,
			Indent: "  ",
		},
		Selectors: listing.DefaultSelectors(),
	}
}

// EnvPrefix prefixes environment overrides: PROPHARVEST_GEO_MIN_INTERVAL
// sets geo.min_interval.
const EnvPrefix = "PROPHARVEST"

// UseEnv makes v consult PROPHARVEST_* environment variables.
func UseEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes v over the defaults and validates the result. Every key is
// registered with v first, since viper only consults the environment for
// keys it already knows.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	registerDefaults(v, "", reflect.ValueOf(cfg))
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// registerDefaults sets a viper default for every leaf of val, keyed by the
// dotted mapstructure path.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
