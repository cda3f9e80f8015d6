package compile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errorLogTimeLayout names error log files, e.g. error_10_19_2026-14_03_59.log.
const errorLogTimeLayout = "01_02_2006-15_04_05"

// ErrorLogPath returns the error log path for a failure at time t.
func ErrorLogPath(dir string, t time.Time) string {
	return filepath.Join(dir, "error_"+t.Format(errorLogTimeLayout)+".log")
}

// newErrorLog opens a JSON logger appending to path.
func newErrorLog(path string) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open error log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.ErrorLevel)
	logger := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))

	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}

// writeErrorLog records a compile failure. It returns the log path, or an
// empty string when no log directory is configured or the log cannot be
// opened.
func writeErrorLog(dir, version, stage string, cause error) string {
	if dir == "" {
		return ""
	}
	path := ErrorLogPath(dir, time.Now())
	logger, closeFn, err := newErrorLog(path)
	if err != nil {
		return ""
	}
	defer closeFn()

	logger.Error("cannot compile data files",
		zap.String("version", version),
		zap.String("stage", stage),
		zap.Error(cause))
	return path
}
