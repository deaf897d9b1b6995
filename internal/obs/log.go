// Package obs wires the structured logger shared by the master process, the
// slave's event loop, and the holder/container layers.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the daemon logger. debug enables development-style encoding and
// debug-level verbosity; production mode otherwise (JSON, info level).
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything, used in unit tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}
