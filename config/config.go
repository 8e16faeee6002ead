// Package config holds the settings of the command line renderer: how songs
// are rendered, how the output is written and how much is logged. Settings
// are read from a YAML file and can be overridden with flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vsariola/tahti/engine"
)

// Config is the render configuration. The zero value of SampleRate means the
// sample rate of the song; negative Workers means one worker per CPU.
type Config struct {
	SampleRate int    `yaml:"sampleRate,omitempty"`
	BlockSize  int    `yaml:"blockSize"`
	Workers    int    `yaml:"workers"`
	LogLevel   string `yaml:"logLevel"`
	LogFormat  string `yaml:"logFormat"`
	PCM16      bool   `yaml:"pcm16,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		BlockSize: engine.DefaultBlockSize,
		Workers:   -1,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML configuration file. Settings missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %v: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the ranges and names of the settings.
func (c *Config) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("sampleRate should be >= 0, got %v", c.SampleRate)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("blockSize should be > 0, got %v", c.BlockSize)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("logFormat should be text or json, got %q", c.LogFormat)
	}
	return nil
}

// RendererOptions returns the renderer options for the configuration. A nil
// logger leaves the renderer silent.
func (c *Config) RendererOptions(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{engine.WithBlockSize(c.BlockSize)}
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	if c.Workers >= 0 {
		opts = append(opts, engine.WithWorkers(c.Workers))
	}
	return opts
}

// Logger creates a logger writing to w with the configured level and
// format. It does not set the global logger.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
