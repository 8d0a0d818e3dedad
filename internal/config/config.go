package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Dataset      string `yaml:"dataset"`
	DataDir      string `yaml:"data_dir"`
	ImageSize    int    `yaml:"image_size"`
	TrainSamples int    `yaml:"train_samples"`
	TestSamples  int    `yaml:"test_samples"`
	NumClasses   int    `yaml:"num_classes"`

	Mode        string  `yaml:"mode"`
	NumColors   int     `yaml:"num_colors"`
	Alpha       float64 `yaml:"alpha"`
	Beta        float64 `yaml:"beta"`
	Gamma       float64 `yaml:"gamma"`
	Temperature float64 `yaml:"temperature"`

	Epochs      int     `yaml:"epochs"`
	BatchSize   int     `yaml:"batch_size"`
	Optimizer   string  `yaml:"optimizer"`
	LR          float64 `yaml:"lr"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
	MaxGradNorm float64 `yaml:"max_grad_norm"`

	Scheduler string  `yaml:"scheduler"`
	T0        int     `yaml:"t0"`
	TMult     int     `yaml:"t_mult"`
	EtaMin    float64 `yaml:"eta_min"`
	MaxLR     float64 `yaml:"max_lr"`

	LogInterval    int    `yaml:"log_interval"`
	Visualize      bool   `yaml:"visualize"`
	VisualizeIndex int    `yaml:"visualize_index"` // negative turns visualization off
	SampleMethod   string `yaml:"sample_method"`
	Checkpoint     string `yaml:"checkpoint"`
	Resume         bool   `yaml:"resume"`
	Seed           int64  `yaml:"seed"`
	Workers        int    `yaml:"workers"`
}

const (
	ModePlain    = "plain"
	ModeColorCNN = "colorcnn"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Dataset:        "synthetic",
		ImageSize:      16,
		TrainSamples:   512,
		TestSamples:    128,
		NumClasses:     10,
		Mode:           ModeColorCNN,
		NumColors:      4,
		Alpha:          1,
		Beta:           0.3,
		Gamma:          1,
		Temperature:    1,
		Epochs:         10,
		BatchSize:      32,
		Optimizer:      "sgd",
		LR:             0.01,
		Momentum:       0.9,
		WeightDecay:    5e-4,
		Scheduler:      "none",
		T0:             1,
		TMult:          1,
		LogInterval:    100,
		VisualizeIndex: 15,
		Seed:           1,
	}
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Dataset     string
	DataDir     string
	Mode        string
	NumColors   int
	Epochs      int
	BatchSize   int
	LR          float64
	Scheduler   string
	LogInterval int
	Visualize   bool
	Checkpoint  string
	Resume      bool
	Seed        int64
	Workers     int
}

// Load reads a Config from YAML on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	if err := decode(bytes.NewReader(raw), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Dataset != "" {
		c.Dataset = o.Dataset
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if o.NumColors > 0 {
		c.NumColors = o.NumColors
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LR > 0 {
		c.LR = o.LR
	}
	if o.Scheduler != "" {
		c.Scheduler = o.Scheduler
	}
	if o.LogInterval > 0 {
		c.LogInterval = o.LogInterval
	}
	if o.Visualize {
		c.Visualize = true
	}
	if o.Checkpoint != "" {
		c.Checkpoint = o.Checkpoint
	}
	if o.Resume {
		c.Resume = true
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
}

// Validate verifies the config is runnable and fills derived defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Dataset {
	case "synthetic":
		if c.NumClasses < 2 {
			return fmt.Errorf("num_classes must be >= 2 (got %d)", c.NumClasses)
		}
	case "mnist":
	case "folder":
		if c.DataDir == "" {
			return errors.New("data_dir is required for the folder dataset")
		}
	default:
		return fmt.Errorf("unknown dataset %q", c.Dataset)
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be > 0 (got %d)", c.ImageSize)
	}
	switch c.Mode {
	case ModePlain:
	case ModeColorCNN:
		if c.NumColors < 1 {
			return fmt.Errorf("num_colors must be >= 1 (got %d)", c.NumColors)
		}
		if c.Alpha < 0 || c.Beta < 0 || c.Gamma < 0 {
			return fmt.Errorf("alpha, beta and gamma must be >= 0 (got %v, %v, %v)", c.Alpha, c.Beta, c.Gamma)
		}
		if c.Temperature <= 0 {
			return fmt.Errorf("temperature must be > 0 (got %v)", c.Temperature)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %v)", c.LR)
	}
	switch c.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	switch c.Scheduler {
	case "", "none":
		c.Scheduler = "none"
	case "cosine":
		if c.T0 < 1 {
			return fmt.Errorf("t0 must be >= 1 (got %d)", c.T0)
		}
		if c.TMult < 1 {
			c.TMult = 1
		}
	case "onecycle":
		if c.MaxLR <= 0 {
			c.MaxLR = c.LR
		}
	default:
		return fmt.Errorf("unknown scheduler %q", c.Scheduler)
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 100
	}
	if c.Resume && c.Checkpoint == "" {
		return errors.New("resume requires a checkpoint path")
	}
	return nil
}
