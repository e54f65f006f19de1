// Package logging builds the harvester's zap loggers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the harvester logger. Development mode writes colored console
// lines at debug level for someone watching a run in a terminal. Production
// mode writes JSON at info level with ISO8601 timestamps and sampling turned
// off, so every per-listing failure line reaches the log.
func New(development bool) (*zap.Logger, error) {
	mode := "production"
	if development {
		mode = "development"
	}
	logger, err := configFor(development).Build()
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", mode, err)
	}
	return logger.Named("harvester"), nil
}

func configFor(development bool) zap.Config {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg
}

// ForRun tags every line written through the returned logger with the run id.
func ForRun(logger *zap.Logger, runID string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("run_id", runID))
}
