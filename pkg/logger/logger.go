// Package logger builds the structured loggers used throughout ignitekv.
//
// It exists because the engine, index and server packages all take a
// *zap.SugaredLogger in their Config structs but none of them know how to
// construct one — that responsibility belongs here, at the edge of the
// process, so the core packages stay free of global logging state.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a SugaredLogger tagged with the given service name.
// It uses zap's production encoder config and writes to stdout at info
// level, which is convenient for a single-binary store where "production"
// logging and "local" logging are the same process.
func New(service string) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)

	log := zap.New(core).With(zap.String("service", service))
	return log.Sugar()
}

// NewNop returns a logger that discards everything, for tests and for
// embedders that don't want ignitekv's logs mixed into their own.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
