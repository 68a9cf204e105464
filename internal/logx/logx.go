package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"opskit/internal/paths"
)

// New creates a logger that writes to a timestamped file inside the
// installation's logs directory. When verbose is true, log lines are also
// mirrored to stderr. The returned closer should be closed when logging is
// no longer needed.
func New(p paths.InstallPaths, verbose bool) (*zap.SugaredLogger, io.Closer, error) {
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(p.LogsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	enc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(file), zapcore.DebugLevel),
	}
	if verbose {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), zapcore.InfoLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.Sugar(), file, nil
}

// Nop returns a logger that discards everything, for callers and tests that
// do not care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
