package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server modes accepted by ForMode.
const (
	ModeRelease = "release"
	ModeDebug   = "debug"
)

// New creates a zap logger. Development loggers print coloured console
// output at debug level; production loggers write JSON to stderr so CLI
// tables on stdout stay clean.
func New(development bool, opts ...zap.Option) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return cfg.Build(opts...)
}

// Must creates a logger or panics
func Must(development bool, opts ...zap.Option) *zap.Logger {
	log, err := New(development, opts...)
	if err != nil {
		panic(err)
	}
	return log
}

// ForMode builds the logger for a server mode. The --debug flag wins over
// a release mode.
func ForMode(mode string, debug bool, opts ...zap.Option) (*zap.Logger, error) {
	switch mode {
	case "", ModeRelease:
		return New(debug, opts...)
	case ModeDebug:
		return New(true, opts...)
	default:
		return nil, fmt.Errorf("unknown server mode %q", mode)
	}
}
