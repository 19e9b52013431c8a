package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/ironsheep/carpart-tools/internal/detection"
	"github.com/ironsheep/carpart-tools/internal/logging"
	"github.com/ironsheep/carpart-tools/internal/radar"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carpart.yaml")
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Train.FeatureSize(), test.ShouldEqual, 1)

	ideal, err := cfg.Radar.Ideal()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ideal, test.ShouldResemble, radar.DefaultIdealAreas)
	test.That(t, cfg.Radar.SelectMode(), test.ShouldEqual, detection.ModeImage)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())

	cfg, err = Load("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Train.Epochs, test.ShouldEqual, 30)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	cfg, err := Load(writeConfig(t, ""))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestLoadOverridesAndEnv(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	t.Setenv("CARPART_EPOCHS", "7")
	path := writeConfig(t, `
log_level: warn
radar:
  mode: video
  workers: 3
  ideal_areas:
    wheel: 0.05
  chart:
    size: 400
    title: frame 12
train:
  input_size: 32
  channels: [4, 8]
  pool: 2
  epochs: ${CARPART_EPOCHS}
  optimizer: adam
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LogLevel, test.ShouldEqual, "warn")
	test.That(t, cfg.Radar.SelectMode(), test.ShouldEqual, detection.ModeVideo)
	test.That(t, cfg.Radar.Workers, test.ShouldEqual, 3)
	test.That(t, cfg.Train.Epochs, test.ShouldEqual, 7)
	test.That(t, cfg.Train.Channels, test.ShouldResemble, []int{4, 8})
	test.That(t, cfg.Train.FeatureSize(), test.ShouldEqual, 8)
	test.That(t, cfg.Train.Optimizer, test.ShouldEqual, "adam")
	test.That(t, cfg.Train.BatchSize, test.ShouldEqual, 16)

	test.That(t, cfg.Radar.Chart.Size, test.ShouldEqual, 400)
	test.That(t, cfg.Radar.Chart.Title, test.ShouldEqual, "frame 12")
	test.That(t, cfg.Radar.Chart.LineColor, test.ShouldEqual, "#1aaf6c")

	ideal, err := cfg.Radar.Ideal()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ideal[detection.Wheel], test.ShouldEqual, 0.05)
	test.That(t, ideal[detection.Light], test.ShouldEqual, 0.03)
}

func TestLoadIdealAreasIsStable(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	path := writeConfig(t, "radar:\n  ideal_areas:\n    wheel: 0.05\n    sideglass: 0.01\n")
	for i := 0; i < 100; i++ {
		cfg, err := Load(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cfg.Radar.IdealAreas, test.ShouldResemble, map[string]float64{"wheel": 0.05, "sideglass": 0.01})

		ideal, err := cfg.Radar.Ideal()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ideal[detection.Wheel], test.ShouldEqual, 0.05)
		test.That(t, ideal[detection.SideGlass], test.ShouldEqual, 0.01)
		test.That(t, ideal[detection.Glass], test.ShouldEqual, 0.09)
	}
}

func TestSpellOutIdeal(t *testing.T) {
	r := RadarConfig{IdealAreas: map[string]float64{"Door": 0.05}}
	test.That(t, r.SpellOutIdeal(), test.ShouldBeNil)
	test.That(t, r.IdealAreas, test.ShouldResemble, map[string]float64{
		"light": 0.03, "wheel": 0.07, "glass": 0.09, "door": 0.05, "sideglass": 0.0075,
	})

	r = RadarConfig{IdealAreas: map[string]float64{"bumper": 0.05}}
	test.That(t, r.SpellOutIdeal(), test.ShouldNotBeNil)
}

func TestLoadLogLevelFromEnvironment(t *testing.T) {
	t.Setenv(logging.EnvLevel, "debug")
	cfg, err := Load(writeConfig(t, "log_level: error\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LogLevel, test.ShouldEqual, "debug")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	for _, tc := range []struct {
		name    string
		content string
		msg     string
	}{
		{"bad yaml", "radar: [", "parsing config"},
		{"bad mode", "radar:\n  mode: photo\n", "unknown selection mode"},
		{"zero ideal", "radar:\n  ideal_areas:\n    door: 0\n", "Door"},
		{"unknown class", "radar:\n  ideal_areas:\n    bumper: 0.1\n", "bumper"},
		{"duplicate class", "radar:\n  ideal_areas:\n    wheel: 0.05\n    Wheel: 0.07\n", `"Wheel" and "wheel" both name class Wheel`},
		{"tiny chart", "radar:\n  chart:\n    size: 20\n", "chart.size"},
		{"huge chart", "radar:\n  chart:\n    size: 100000\n", "chart.size"},
		{"negative workers", "radar:\n  workers: -1\n", "workers"},
		{"topology too deep", "train:\n  input_size: 16\n", "too small"},
		{"bad optimizer", "train:\n  optimizer: rmsprop\n", "optimizer"},
		{"zero batch", "train:\n  batch_size: 0\n", "batch_size"},
		{"zero lr", "train:\n  learning_rate: 0\n", "learning_rate"},
		{"zero gamma", "train:\n  gamma: 0\n", "gamma"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	cfg := Default()
	cfg.Train.Epochs = 3
	cfg.Radar.Mode = "video"
	test.That(t, cfg.Radar.SpellOutIdeal(), test.ShouldBeNil)
	path := filepath.Join(t.TempDir(), "saved.yaml")
	test.That(t, cfg.Save(path), test.ShouldBeNil)

	loaded, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, cfg)
}
