package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"top-pick/visibility"
)

// Anchor positions for the sidebar on the trailing edge of the viewport.
const (
	AnchorTop    = "top"
	AnchorCenter = "center"
)

// Theme holds the colors and font of the sidebar.
type Theme struct {
	Background  string `yaml:"background"`
	Border      string `yaml:"border"`
	Text        string `yaml:"text"`
	Muted       string `yaml:"muted"`
	Accent      string `yaml:"accent"`
	AccentHover string `yaml:"accent_hover"`
	FontFamily  string `yaml:"font_family"`
}

// Widget is the per-instance configuration surface.
type Widget struct {
	DataURL          string  `yaml:"data_url"`
	ScrollThreshold  float64 `yaml:"scroll_threshold"`
	AnchorPosition   string  `yaml:"anchor_position"`
	TopOffset        int     `yaml:"top_offset_px"`
	Width            int     `yaml:"width_px"`
	Theme            Theme   `yaml:"theme"`
	VisibilityPolicy string  `yaml:"visibility_policy"`
	Heading          string  `yaml:"heading"`
	Brand            string  `yaml:"brand"`
	CTAURL           string  `yaml:"cta_url"`
	CTALabel         string  `yaml:"cta_label"`
	FallbackMessage  string  `yaml:"fallback_message"`
	Collapsible      bool    `yaml:"collapsible"`
}

// Config holds everything the server needs.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	Data struct {
		// File is served at /data/holdings.json and used when URL is empty.
		File            string        `yaml:"file"`
		URL             string        `yaml:"url"`
		Timeout         time.Duration `yaml:"timeout"`
		MaxRetries      int           `yaml:"max_retries"`
		BackoffBase     time.Duration `yaml:"backoff_base"`
		BackoffMax      time.Duration `yaml:"backoff_max"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"data"`

	Widget Widget `yaml:"widget"`

	Quotes struct {
		Enabled bool   `yaml:"enabled"`
		Suffix  string `yaml:"suffix"`
	} `yaml:"quotes"`

	Search struct {
		Engine string `yaml:"engine"` // "bleve" or "memory"
	} `yaml:"search"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Server.Addr = ":8080"
	c.Server.StaticDir = "./static"

	c.Data.File = "data/example_holding.json"
	c.Data.Timeout = 10 * time.Second
	c.Data.MaxRetries = 2
	c.Data.BackoffBase = 500 * time.Millisecond
	c.Data.BackoffMax = 8 * time.Second
	c.Data.RefreshInterval = 5 * time.Minute

	c.Widget = DefaultWidget()

	c.Search.Engine = "bleve"
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	return &c
}

// DefaultWidget returns the stock look and copy of the sidebar.
func DefaultWidget() Widget {
	return Widget{
		DataURL:          "",
		ScrollThreshold:  visibility.DefaultThreshold,
		AnchorPosition:   AnchorTop,
		TopOffset:        20,
		Width:            280,
		VisibilityPolicy: string(visibility.PolicySticky),
		Heading:          "One Top Pick For You",
		Brand:            "Victor Philip",
		CTAURL:           "https://victorphilip.com/Rankings",
		CTALabel:         "Want more…?",
		FallbackMessage:  "Unable to load top pick at this time.",
		Theme: Theme{
			Background:  "#fafafa",
			Border:      "#ddd",
			Text:        "#333",
			Muted:       "#666",
			Accent:      "#87cefa",
			AccentHover: "#000",
			FontFamily:  "sans-serif",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parsing %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// overrideWithEnv lets deployments change the common knobs without a file.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("TOPPICK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TOPPICK_DATA_URL"); v != "" {
		cfg.Data.URL = v
	}
	if v := os.Getenv("TOPPICK_DATA_FILE"); v != "" {
		cfg.Data.File = v
	}
	if v := os.Getenv("TOPPICK_SCROLL_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "TOPPICK_SCROLL_THRESHOLD")
		}
		cfg.Widget.ScrollThreshold = f
	}
	if v := os.Getenv("TOPPICK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Data.URL == "" && c.Data.File == "" {
		return errors.New("one of data.url or data.file is required")
	}
	if c.Data.URL != "" && !strings.HasPrefix(c.Data.URL, "http://") && !strings.HasPrefix(c.Data.URL, "https://") {
		return errors.Errorf("data.url must be http(s): %s", c.Data.URL)
	}
	if c.Data.Timeout <= 0 {
		return errors.New("data.timeout must be positive")
	}
	if c.Data.MaxRetries < 0 {
		return errors.New("data.max_retries must not be negative")
	}
	if c.Data.RefreshInterval < 0 {
		return errors.New("data.refresh_interval must not be negative")
	}
	switch c.Search.Engine {
	case "bleve", "memory":
	default:
		return errors.Errorf("unknown search engine %q", c.Search.Engine)
	}
	return c.Widget.Validate()
}

// Validate checks the widget surface on its own so embedders can reuse it.
func (w *Widget) Validate() error {
	if w.ScrollThreshold <= 0 || w.ScrollThreshold > 1 {
		return errors.Errorf("widget.scroll_threshold must be in (0,1], got %v", w.ScrollThreshold)
	}
	switch w.AnchorPosition {
	case AnchorTop, AnchorCenter:
	default:
		return errors.Errorf("widget.anchor_position must be %q or %q", AnchorTop, AnchorCenter)
	}
	if _, err := visibility.ParsePolicy(w.VisibilityPolicy); err != nil {
		return errors.Wrap(err, "widget.visibility_policy")
	}
	if w.CTAURL != "" && !strings.HasPrefix(w.CTAURL, "https://") && !strings.HasPrefix(w.CTAURL, "http://") {
		return errors.Errorf("widget.cta_url must be http(s): %s", w.CTAURL)
	}
	return nil
}

// Policy returns the parsed visibility policy.
func (w *Widget) Policy() visibility.Policy {
	p, err := visibility.ParsePolicy(w.VisibilityPolicy)
	if err != nil {
		return visibility.PolicySticky
	}
	return p
}
