package applog

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxValueLen   = 200
	truncSuffix   = "…"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
	sink   *lumberjack.Logger
)

// Init opens the log file for appending. Call once at startup.
// The file is rotated by size (5 MB, one backup kept).
// Safe to skip: all log calls are no-ops if not initialized.
// When console is true, events are mirrored to stderr.
func Init(dir string, console bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "notebridge.log"),
		MaxSize:    maxFileSizeMB,
		MaxBackups: 1,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), zap.InfoLevel),
	}
	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zap.InfoLevel,
		))
	}

	mu.Lock()
	logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	sink = rotator
	mu.Unlock()
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	logger.Sync()
	if sink != nil {
		sink.Close()
		sink = nil
	}
	logger = zap.NewNop().Sugar()
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("handler.content.done", "url", url, "extract", true)
func Info(event string, kv ...any) {
	current().Infow(event, clip(kv)...)
}

// Warn logs an event that is expected but worth noticing, such as a push
// to a context that has already gone away.
func Warn(event string, kv ...any) {
	current().Warnw(event, clip(kv)...)
}

// Error logs an event with an error.
//
//	applog.Error("ws.send", err, "action", "handleSummaryResponse")
func Error(event string, err error, kv ...any) {
	if err != nil {
		kv = append([]any{"err", err.Error()}, kv...)
	}
	current().Errorw(event, clip(kv)...)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// clip shortens long string values so a whole page of content never ends up
// in a single log line.
func clip(kv []any) []any {
	for i := 1; i < len(kv); i += 2 {
		if s, ok := kv[i].(string); ok && len(s) > maxValueLen {
			kv[i] = s[:maxValueLen] + truncSuffix
		}
	}
	return kv
}
