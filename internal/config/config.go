// Package config handles configuration loading and validation.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// OMR_* environment variables. Nested sections map to underscore-joined
// names, e.g. pipeline.detect.min_radius is OMR_PIPELINE_DETECT_MIN_RADIUS.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/omr-grader/internal/logger"
	"github.com/ironsheep/omr-grader/internal/omr"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "OMR"

// Config holds all application configuration.
type Config struct {
	// KeyPath is the answer key image graded sheets are compared against.
	KeyPath string `yaml:"key_path" envconfig:"KEY_PATH"`

	Pipeline omr.Params  `yaml:"pipeline" envconfig:"PIPELINE"`
	HTTP     HTTPConfig  `yaml:"http" envconfig:"HTTP"`
	Log      LogConfig   `yaml:"log" envconfig:"LOG"`
	Debug    DebugConfig `yaml:"debug" envconfig:"DEBUG"`
}

// HTTPConfig holds upload API settings.
type HTTPConfig struct {
	Addr        string `yaml:"addr" envconfig:"ADDR"`
	MaxUploadMB int    `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
	CORSOrigins string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"` // console or json
}

// DebugConfig holds diagnostic output settings.
type DebugConfig struct {
	// OverlayDir, when set, receives an annotated overlay of every graded sheet.
	OverlayDir string `yaml:"overlay_dir" envconfig:"OVERLAY_DIR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		KeyPath:  "answer_key.jpg",
		Pipeline: omr.DefaultParams(),
		HTTP: HTTPConfig{
			Addr:        ":8000",
			MaxUploadMB: 32,
			CORSOrigins: "*",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logger.FormatConsole,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath and the environment, then validates it.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting as one joined error.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.HTTP.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("http.max_upload_mb must be positive, got %d", c.HTTP.MaxUploadMB))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatConsole, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.HTTP.MaxUploadMB) << 20
}
