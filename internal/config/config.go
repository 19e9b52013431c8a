package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/carpart-tools/internal/detection"
	"github.com/ironsheep/carpart-tools/internal/logging"
	"github.com/ironsheep/carpart-tools/internal/radar"
)

// Config is the top-level configuration shared by carpart and carpart-mcp.
type Config struct {
	LogLevel string      `yaml:"log_level"`
	Radar    RadarConfig `yaml:"radar"`
	Train    TrainConfig `yaml:"train"`
}

// RadarConfig controls region selection, scoring and chart rendering.
type RadarConfig struct {
	// Mode is the default selector mode, "image" or "video".
	Mode string `yaml:"mode"`

	// IdealAreas maps class names to the area that scores 100. Classes left
	// out keep their default. Names are case-insensitive but each class may
	// appear only once.
	IdealAreas map[string]float64 `yaml:"ideal_areas,omitempty"`

	// Workers bounds parallel frame scoring. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`

	Chart radar.Chart `yaml:"chart"`
}

// TrainConfig holds the regressor topology and the optimisation settings.
type TrainConfig struct {
	InputSize int   `yaml:"input_size"`
	Channels  []int `yaml:"channels"`
	Pool      int   `yaml:"pool"`
	Hidden    []int `yaml:"hidden"`
	Outputs   int   `yaml:"outputs"`

	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	WeightDecay  float64 `yaml:"weight_decay"`
	StepSize     int     `yaml:"step_size"`
	Gamma        float64 `yaml:"gamma"`
	Seed         int64   `yaml:"seed"`
	Shuffle      bool    `yaml:"shuffle"`

	// CacheSize bounds the decoded image cache. Zero keeps every image.
	CacheSize int `yaml:"cache_size"`
}

// Default returns the configuration the tools use when no file is given.
//
// IdealAreas stays nil: yaml.v3 merges a decoded mapping into an existing
// map, so a pre-filled map would mix default and file keys.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Radar: RadarConfig{
			Mode:  detection.ModeImage.String(),
			Chart: radar.DefaultChart(),
		},
		Train: TrainConfig{
			InputSize:    256,
			Channels:     []int{64, 128, 256, 256},
			Pool:         4,
			Hidden:       []int{256, 64, 16},
			Outputs:      2,
			BatchSize:    16,
			Epochs:       30,
			Optimizer:    "sgd",
			LearningRate: 0.01,
			Momentum:     0.9,
			StepSize:     10,
			Gamma:        0.5,
			Seed:         1,
			Shuffle:      true,
		},
	}
}

// Load reads a YAML config file, expanding ${VAR} references first. A
// missing file yields the defaults. Keys absent from the file keep their
// default values. CARPART_LOG_LEVEL overrides log_level.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := envsubst.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, errors.Wrapf(err, "reading config %s", path)
		default:
			if err := yaml.NewDecoder(bytes.NewReader(buf)).Decode(cfg); err != nil && !isEmptyDocument(err) {
				return nil, errors.Wrapf(err, "parsing config %s", path)
			}
		}
	}
	if lvl := os.Getenv(logging.EnvLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func isEmptyDocument(err error) bool {
	return errors.Is(err, io.EOF)
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %s", path)
}

// Validate reports the first inconsistency found.
func (c *Config) Validate() error {
	if _, err := detection.ParseMode(c.Radar.Mode); err != nil {
		return err
	}
	if _, err := c.Radar.Ideal(); err != nil {
		return err
	}
	if c.Radar.Workers < 0 {
		return errors.Errorf("radar.workers must not be negative, got %d", c.Radar.Workers)
	}
	if c.Radar.Chart.Size < radar.MinChartSize || c.Radar.Chart.Size > radar.MaxChartSize {
		return errors.Errorf("radar.chart.size must be between %d and %d, got %d",
			radar.MinChartSize, radar.MaxChartSize, c.Radar.Chart.Size)
	}
	return c.Train.Validate()
}

// Ideal returns the ideal areas in class order, filling unset classes from
// radar.DefaultIdealAreas.
func (r RadarConfig) Ideal() (radar.IdealAreas, error) {
	ideal, err := MergeIdeal(radar.DefaultIdealAreas, r.IdealAreas)
	return ideal, errors.Wrap(err, "radar.ideal_areas")
}

// MergeIdeal overrides entries of base with areas keyed by class name and
// validates the result. Two names resolving to the same class are rejected.
func MergeIdeal(base radar.IdealAreas, named map[string]float64) (radar.IdealAreas, error) {
	byClass, err := detection.ParseClassValues(named)
	if err != nil {
		return base, err
	}
	ideal := base
	for c, v := range byClass {
		ideal[c] = v
	}
	return ideal, ideal.Validate()
}

// SpellOutIdeal fills IdealAreas with every class under its lowercase name,
// taking values from Ideal. It is used when writing a starter config file.
func (r *RadarConfig) SpellOutIdeal() error {
	ideal, err := r.Ideal()
	if err != nil {
		return err
	}
	r.IdealAreas = make(map[string]float64, detection.NumClasses)
	for _, c := range detection.Classes() {
		r.IdealAreas[strings.ToLower(c.String())] = ideal[c]
	}
	return nil
}

// SelectMode returns the parsed default selector mode.
func (r RadarConfig) SelectMode() detection.Mode {
	m, err := detection.ParseMode(r.Mode)
	if err != nil {
		return detection.ModeImage
	}
	return m
}

// Validate checks the topology and the hyper-parameters.
func (t TrainConfig) Validate() error {
	if len(t.Channels) == 0 {
		return errors.New("train.channels must not be empty")
	}
	for i, c := range t.Channels {
		if c <= 0 {
			return errors.Errorf("train.channels[%d] must be positive, got %d", i, c)
		}
	}
	if t.Pool < 1 {
		return errors.Errorf("train.pool must be at least 1, got %d", t.Pool)
	}
	if t.InputSize <= 0 {
		return errors.Errorf("train.input_size must be positive, got %d", t.InputSize)
	}
	if t.FeatureSize() < 1 {
		return errors.Errorf("train.input_size %d is too small for %d pooling stages of %d",
			t.InputSize, len(t.Channels), t.Pool)
	}
	for i, h := range t.Hidden {
		if h <= 0 {
			return errors.Errorf("train.hidden[%d] must be positive, got %d", i, h)
		}
	}
	if t.Outputs <= 0 {
		return errors.Errorf("train.outputs must be positive, got %d", t.Outputs)
	}
	if t.BatchSize <= 0 {
		return errors.Errorf("train.batch_size must be positive, got %d", t.BatchSize)
	}
	if t.Epochs < 0 {
		return errors.Errorf("train.epochs must not be negative, got %d", t.Epochs)
	}
	switch strings.ToLower(t.Optimizer) {
	case "sgd", "adam":
	default:
		return errors.Errorf("train.optimizer must be sgd or adam, got %q", t.Optimizer)
	}
	if t.LearningRate <= 0 {
		return errors.Errorf("train.learning_rate must be positive, got %v", t.LearningRate)
	}
	if t.Momentum < 0 || t.WeightDecay < 0 {
		return errors.New("train.momentum and train.weight_decay must not be negative")
	}
	if t.StepSize <= 0 {
		return errors.Errorf("train.step_size must be positive, got %d", t.StepSize)
	}
	if t.Gamma <= 0 {
		return errors.Errorf("train.gamma must be positive, got %v", t.Gamma)
	}
	if t.CacheSize < 0 {
		return errors.Errorf("train.cache_size must not be negative, got %d", t.CacheSize)
	}
	return nil
}

// FeatureSize is the spatial side length left after every pooling stage.
func (t TrainConfig) FeatureSize() int {
	side := t.InputSize
	for range t.Channels {
		side /= t.Pool
	}
	return side
}
