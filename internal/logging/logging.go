// Package logging builds the zap logger used by benchaudit: colored
// console output on stderr plus an optional plain-text run log file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Level is DEBUG or INFO (case-insensitive). Empty means INFO.
	Level string

	// Dir, when set, receives a per-run log file.
	Dir string

	// NoColor disables level colors on the console.
	NoColor bool

	// Console overrides the console destination (stderr by default).
	Console zapcore.WriteSyncer
}

// ParseLevel maps a --loglevel value to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (must be DEBUG or INFO)", s)
	}
}

// LogFileName returns the run log file name for a start time.
func LogFileName(start time.Time) string {
	return fmt.Sprintf("audit_log_%s.log", start.Format("20060102_150405"))
}

// New builds the logger. It returns the path of the run log file ("" when
// Dir is empty) and a cleanup function that flushes and closes it.
func New(opts Options) (*zap.Logger, string, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, "", nil, err
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = ""
	consoleCfg.CallerKey = ""
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if opts.NoColor {
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level),
	}

	path := ""
	closeFile := func() {}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, "", nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path = filepath.Join(opts.Dir, LogFileName(time.Now()))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closeFile = func() { _ = f.Close() }

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = logger.Sync()
		closeFile()
	}
	return logger, path, cleanup, nil
}
