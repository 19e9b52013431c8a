package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"DEBUG", zap.DebugLevel},
		{" info ", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"warning", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"verbose", zap.InfoLevel},
	} {
		test.That(t, ParseLevel(tc.in), test.ShouldEqual, tc.want)
	}
}

func TestNew(t *testing.T) {
	logger, err := New("carpart", "warn")
	test.That(t, err, test.ShouldBeNil)
	core := logger.Desugar().Core()
	test.That(t, core.Enabled(zap.InfoLevel), test.ShouldBeFalse)
	test.That(t, core.Enabled(zap.WarnLevel), test.ShouldBeTrue)
}

func TestNewConfigWritesToStderr(t *testing.T) {
	cfg := NewConfig("debug")
	test.That(t, cfg.OutputPaths, test.ShouldResemble, []string{"stderr"})
	test.That(t, cfg.Level.Level(), test.ShouldEqual, zap.DebugLevel)
}
