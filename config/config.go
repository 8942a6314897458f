// Package config loads the benchmark run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/weiihann/procbench/harness"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config describes one benchmark run: what to measure and how.
type Config struct {
	Programs    []string      `yaml:"programs"`
	ProgramDir  string        `yaml:"program_dir"`
	Loader      string        `yaml:"loader"`
	TimeCommand []string      `yaml:"time_command"`
	Variants    []string      `yaml:"variants"`
	Trials      int           `yaml:"trials"`
	Concurrency int           `yaml:"concurrency"`
	OutPrefix   string        `yaml:"out_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
	Env         []string      `yaml:"env"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Programs:    []string{"treap", "sorting", "matmul", "bsearch", "memthrash"},
		ProgramDir:  "programs",
		Loader:      "./loader/target/release/fixed_loader",
		TimeCommand: []string{"/usr/bin/time", "-v"},
		Variants:    []string{"exec", "lib", "clam"},
		Trials:      5,
		Concurrency: 8,
		OutPrefix:   "results",
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations that would fail before any measurement.
func (c *Config) Validate() error {
	if len(c.Programs) == 0 {
		return fmt.Errorf("%w: no programs defined", ErrInvalid)
	}
	for i, p := range c.Programs {
		if p == "" {
			return fmt.Errorf("%w: program %d: name is required", ErrInvalid, i)
		}
	}
	if len(c.TimeCommand) == 0 || c.TimeCommand[0] == "" {
		return fmt.Errorf("%w: time_command is required", ErrInvalid)
	}
	if len(c.Variants) == 0 {
		return fmt.Errorf("%w: no variants defined", ErrInvalid)
	}
	if _, err := c.ParsedVariants(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Trials < 1 {
		return fmt.Errorf("%w: trials must be at least 1, got %d", ErrInvalid, c.Trials)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d",
			ErrInvalid, c.Concurrency)
	}
	if c.OutPrefix == "" {
		return fmt.Errorf("%w: out_prefix is required", ErrInvalid)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalid)
	}

	return nil
}

// ParsedVariants returns the configured variant tags as harness variants.
func (c *Config) ParsedVariants() ([]harness.Variant, error) {
	variants := make([]harness.Variant, 0, len(c.Variants))

	for _, tag := range c.Variants {
		v, err := harness.ParseVariant(tag)
		if err != nil {
			return nil, err
		}

		variants = append(variants, v)
	}

	return variants, nil
}

// Layout returns where the configured artifacts live.
func (c *Config) Layout() harness.Layout {
	return harness.Layout{
		ProgramDir: c.ProgramDir,
		Loader:     c.Loader,
	}
}
