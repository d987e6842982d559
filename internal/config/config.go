// Package config holds the annotator configuration: viewport and
// interaction tuning, the record store backend and the API server address.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/annotate"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/pkg/geometry"
)

// Environment variables that override the file.
const (
	EnvDatabase = "ANNOTATOR_DB"
	EnvAPIURL   = "ANNOTATOR_API_URL"
	EnvAddr     = "ANNOTATOR_ADDR"
	EnvStore    = "ANNOTATOR_STORE"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

type Config struct {
	Viewport    Viewport    `yaml:"viewport"`
	Interaction Interaction `yaml:"interaction"`
	Store       Store       `yaml:"store"`
	Server      Server      `yaml:"server"`
}

// Viewport sizes the drawing frame and bounds zooming.
type Viewport struct {
	FrameWidth  float64 `yaml:"frame_width"`
	FrameHeight float64 `yaml:"frame_height"`
	ZoomStep    float64 `yaml:"zoom_step"`
	MaxScale    float64 `yaml:"max_scale"`
}

type Interaction struct {
	// HandleRadius is the corner hit radius in screen pixels.
	HandleRadius float64 `yaml:"handle_radius"`
	// MinBoxSize is the smallest committed width or height, in image pixels.
	MinBoxSize   float64 `yaml:"min_box_size"`
	DefaultClass string  `yaml:"default_class"`
}

type Store struct {
	Backend      string        `yaml:"backend"`
	DatabasePath string        `yaml:"database_path"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Viewport: Viewport{
			FrameWidth:  1024,
			FrameHeight: 768,
			ZoomStep:    viewport.DefaultZoomStep,
			MaxScale:    viewport.DefaultMaxScale,
		},
		Interaction: Interaction{
			HandleRadius: annotate.DefaultHandleRadius,
			MinBoxSize:   geometry.DefaultMinExtent,
			DefaultClass: anomaly.DefaultClass(),
		},
		Store: Store{
			Backend:      BackendSQLite,
			DatabasePath: "annotator.db",
			BaseURL:      "http://localhost:8080",
			Timeout:      15 * time.Second,
		},
		Server: Server{Addr: ":8080"},
	}
}

// LoadEnv loads .env style files into the process environment. Missing
// files are ignored; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabase); v != "" {
		c.Store.DatabasePath = v
	}
	if v := getenv(EnvAPIURL); v != "" {
		c.Store.BaseURL = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvStore); v != "" {
		c.Store.Backend = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Viewport.FrameWidth <= 0 || c.Viewport.FrameHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport frame must be positive, got %gx%g", c.Viewport.FrameWidth, c.Viewport.FrameHeight))
	}
	if c.Viewport.ZoomStep <= 1 {
		errs = append(errs, fmt.Errorf("viewport zoom_step must be > 1, got %g", c.Viewport.ZoomStep))
	}
	if c.Viewport.MaxScale <= 0 {
		errs = append(errs, fmt.Errorf("viewport max_scale must be positive, got %g", c.Viewport.MaxScale))
	}
	if c.Interaction.HandleRadius <= 0 {
		errs = append(errs, fmt.Errorf("interaction handle_radius must be positive, got %g", c.Interaction.HandleRadius))
	}
	if c.Interaction.MinBoxSize < 0 {
		errs = append(errs, fmt.Errorf("interaction min_box_size must not be negative, got %g", c.Interaction.MinBoxSize))
	}
	if c.Interaction.DefaultClass != "" && !anomaly.KnownClass(c.Interaction.DefaultClass) {
		errs = append(errs, fmt.Errorf("interaction default_class %q is not a known class", c.Interaction.DefaultClass))
	}
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.DatabasePath == "" {
			errs = append(errs, errors.New("store database_path is required for the sqlite backend"))
		}
	case BackendREST:
		if c.Store.BaseURL == "" {
			errs = append(errs, errors.New("store base_url is required for the rest backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store backend must be %q or %q, got %q", BackendSQLite, BackendREST, c.Store.Backend))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.Store.Timeout))
	}
	return errors.Join(errs...)
}

// ViewportOptions converts the viewport section.
func (c Config) ViewportOptions() viewport.Options {
	return viewport.Options{ZoomStep: c.Viewport.ZoomStep, MaxScale: c.Viewport.MaxScale}
}

// SessionOptions converts the viewport and interaction sections.
func (c Config) SessionOptions() annotate.Options {
	opts := annotate.DefaultOptions()
	opts.Viewport = c.ViewportOptions()
	opts.HandleRadius = c.Interaction.HandleRadius
	opts.MinExtent = c.Interaction.MinBoxSize
	if c.Interaction.DefaultClass != "" {
		opts.DefaultClass = c.Interaction.DefaultClass
	}
	return opts
}

// FrameSize is the configured drawing frame.
func (c Config) FrameSize() geometry.Size {
	return geometry.NewSize(c.Viewport.FrameWidth, c.Viewport.FrameHeight)
}
