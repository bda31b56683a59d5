package observability

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile configures an optional size-rotated JSON log file written alongside stderr.
type LogFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// WithLogFile tees logger into a rotating file at lf.Path using the same level.
// The returned closer must be closed after the final Sync. An empty path returns logger unchanged and a nil closer.
func WithLogFile(logger *zap.Logger, lf LogFile) (*zap.Logger, io.Closer) {
	if lf.Path == "" {
		return logger, nil
	}
	rotator := &lumberjack.Logger{
		Filename:   lf.Path,
		MaxSize:    lf.MaxSizeMB,
		MaxBackups: lf.MaxBackups,
		MaxAge:     lf.MaxAgeDays,
		Compress:   true,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.LevelEnablerFunc(logger.Core().Enabled)
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level)
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), rotator
}
