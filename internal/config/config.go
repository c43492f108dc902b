// Package config provides configuration loading for the page canvas pipeline.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/page-canvas/internal/domain"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Tracing       TracingConfig       `yaml:"tracing"`
	View          ViewConfig          `yaml:"view"`
	Canvas        CanvasConfig        `yaml:"canvas"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ExtractionConfig holds rasterization settings.
type ExtractionConfig struct {
	DPI          float64          `yaml:"dpi"`
	DefaultRange domain.PageRange `yaml:"default_range"`
	MaxPages     int              `yaml:"max_pages"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	MaxConcurrent int                `yaml:"max_concurrent"`
	Params        domain.TraceParams `yaml:"params"`
}

// ViewConfig holds the initial display flags.
type ViewConfig struct {
	ShowRaster  bool `yaml:"show_raster"`
	ShowVector  bool `yaml:"show_vector"`
	SplitRatio  int  `yaml:"split_ratio"`
	ColumnCount int  `yaml:"column_count"`
}

// CanvasConfig holds layout designer geometry.
type CanvasConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	GridSize     float64 `yaml:"grid_size"`
	ShowGrid     bool    `yaml:"show_grid"`
	MinZoom      float64 `yaml:"min_zoom"`
	MaxZoom      float64 `yaml:"max_zoom"`
	ZoomStep     float64 `yaml:"zoom_step"`
	ItemWidth    float64 `yaml:"item_width"`
	MinItemWidth float64 `yaml:"min_item_width"`
	ResizeStep   float64 `yaml:"resize_step"`
	KeyStep      float64 `yaml:"key_step"`
	Gap          float64 `yaml:"gap"`
}

// ExportConfig holds layout export settings.
type ExportConfig struct {
	OutputDir    string  `yaml:"output_dir"`
	PreviewScale float64 `yaml:"preview_scale"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the settings the designer ships with.
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			DPI:          150,
			DefaultRange: domain.PageRange{Start: 1, End: 1},
			MaxPages:     1000,
		},
		Tracing: TracingConfig{
			MaxConcurrent: 4,
			Params:        domain.DefaultTraceParams(),
		},
		View: ViewConfig{
			ShowRaster:  false,
			ShowVector:  true,
			SplitRatio:  50,
			ColumnCount: 4,
		},
		Canvas: CanvasConfig{
			Width:        2400,
			Height:       1600,
			GridSize:     50,
			ShowGrid:     true,
			MinZoom:      0.25,
			MaxZoom:      3.0,
			ZoomStep:     0.1,
			ItemWidth:    200,
			MinItemWidth: 80,
			ResizeStep:   20,
			KeyStep:      10,
			Gap:          20,
		},
		Export: ExportConfig{
			OutputDir:    ".",
			PreviewScale: 0.5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Extraction.MaxPages < 1 || c.Extraction.MaxPages > domain.MaxRangePages {
		return domain.ConfigError(fmt.Sprintf("extraction.max_pages must be between 1 and %d", domain.MaxRangePages), nil)
	}
	if err := c.Extraction.DefaultRange.ValidateLimit(c.Extraction.MaxPages); err != nil {
		return err
	}
	if c.Extraction.DPI <= 0 {
		return domain.ConfigError(fmt.Sprintf("invalid dpi: %v", c.Extraction.DPI), nil)
	}
	if c.Tracing.MaxConcurrent < 1 {
		return domain.ConfigError("tracing.max_concurrent must be at least 1", nil)
	}
	if err := c.Tracing.Params.Validate(); err != nil {
		return err
	}
	if c.View.SplitRatio < 0 || c.View.SplitRatio > 100 {
		return domain.ConfigError("view.split_ratio must be between 0 and 100", nil)
	}
	if c.View.ColumnCount < 1 || c.View.ColumnCount > 6 {
		return domain.ConfigError("view.column_count must be between 1 and 6", nil)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 || c.Canvas.GridSize <= 0 {
		return domain.ConfigError("canvas dimensions must be positive", nil)
	}
	if c.Canvas.MinZoom <= 0 || c.Canvas.MaxZoom < c.Canvas.MinZoom {
		return domain.ConfigError(fmt.Sprintf("invalid zoom range [%v, %v]", c.Canvas.MinZoom, c.Canvas.MaxZoom), nil)
	}
	if c.Canvas.MinItemWidth <= 0 || c.Canvas.ItemWidth < c.Canvas.MinItemWidth {
		return domain.ConfigError("canvas.item_width must be at least canvas.min_item_width", nil)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAGECANVAS_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Extraction.DPI = dpi
		}
	}

	if v := os.Getenv("PAGECANVAS_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.MaxPages = n
		}
	}

	if v := os.Getenv("PAGECANVAS_TRACE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tracing.MaxConcurrent = n
		}
	}

	if v := os.Getenv("PAGECANVAS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tracing.Params.Threshold = n
		}
	}

	if v := os.Getenv("PAGECANVAS_COLUMNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.View.ColumnCount = n
		}
	}

	if v := os.Getenv("PAGECANVAS_OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
