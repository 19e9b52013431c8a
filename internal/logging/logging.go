package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel names the environment variable that overrides the configured
// log level.
const EnvLevel = "CARPART_LOG_LEVEL"

// ParseLevel maps a level name to a zap level. Unknown and empty names map
// to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewConfig returns the console config shared by both binaries. All output
// goes to stderr; stdout carries MCP messages and CLI results.
func NewConfig(level string) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(ParseLevel(level)),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// New builds a named sugared logger at the given level.
func New(name, level string) (*zap.SugaredLogger, error) {
	logger, err := NewConfig(level).Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named(name), nil
}
