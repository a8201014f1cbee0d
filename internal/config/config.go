// Package config holds the service configuration: defaults, an optional YAML
// file, and validation. Command-line flags are applied on top by main.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"brick-detector/internal/brick"
	"brick-detector/internal/queue"
	"brick-detector/internal/video"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Addr         string `yaml:"addr"`
	UploadDir    string `yaml:"upload_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	DBPath       string `yaml:"db_path"`

	// Upload filter, lowercase without dot
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`

	QueueOrder string `yaml:"queue_order"` // lifo or fifo

	Video     VideoConfig           `yaml:"video"`
	Detection brick.DetectionParams `yaml:"detection"`

	Debug bool `yaml:"debug"`
}

// VideoConfig describes the annotated output video.
type VideoConfig struct {
	Codec     string  `yaml:"codec"`
	Extension string  `yaml:"extension"`
	FPS       float64 `yaml:"fps"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	out := video.DefaultOutput("")
	return &Config{
		Addr:              ":5000",
		UploadDir:         "uploads",
		ProcessedDir:      "processed",
		DBPath:            "db.json",
		AllowedExtensions: []string{"mp4", "avi"},
		MaxUploadBytes:    512 << 20,
		QueueOrder:        queue.OrderLIFO.String(),
		Video: VideoConfig{
			Codec:     out.Codec,
			Extension: out.Extension,
			FPS:       out.FPS,
		},
		Detection: brick.DefaultParams(),
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	for i, ext := range c.AllowedExtensions {
		c.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
	if c.Video.Extension != "" && !strings.HasPrefix(c.Video.Extension, ".") {
		c.Video.Extension = "." + c.Video.Extension
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.UploadDir == "" || c.ProcessedDir == "" || c.DBPath == "" {
		errs = append(errs, errors.New("upload_dir, processed_dir and db_path are required"))
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("allowed_extensions must not be empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if _, err := queue.ParseOrder(c.QueueOrder); err != nil {
		errs = append(errs, err)
	}
	if len(c.Video.Codec) != 4 {
		errs = append(errs, fmt.Errorf("video codec must be a FourCC, got %q", c.Video.Codec))
	}
	if c.Video.FPS <= 0 {
		errs = append(errs, fmt.Errorf("video fps must be positive, got %v", c.Video.FPS))
	}
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	return multierr.Combine(errs...)
}

// Allowed reports whether a file extension (with or without dot) may be
// uploaded.
func (c *Config) Allowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, a := range c.AllowedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}

// Order returns the parsed queue order.
func (c *Config) Order() queue.Order {
	o, err := queue.ParseOrder(c.QueueOrder)
	if err != nil {
		return queue.OrderLIFO
	}
	return o
}

// VideoOutput returns the processor output settings.
func (c *Config) VideoOutput() video.Output {
	return video.Output{
		Dir:       c.ProcessedDir,
		Codec:     c.Video.Codec,
		Extension: c.Video.Extension,
		FPS:       c.Video.FPS,
	}
}
