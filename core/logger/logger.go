// Package logger provides structured slog-based logging with component
// loggers, rid correlation, debug sampling, and asynchronous sinks.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/cinebot/core/buildinfo"
	coreconfig "github.com/m3rciful/cinebot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(1, 50)

	// L is the base logger shared by component helpers.
	L *slog.Logger

	// TG logs Telegram transport events.
	TG *slog.Logger
	// DB logs database events.
	DB *slog.Logger
	// MIG logs migration events.
	MIG *slog.Logger
	// SVCSessions logs session store activity.
	SVCSessions *slog.Logger
	// SVCAccess logs permission cache activity.
	SVCAccess *slog.Logger
	// SVCGate logs subscription gate activity.
	SVCGate *slog.Logger
	// SVCWizard logs admin wizard activity.
	SVCWizard *slog.Logger
	// SVCBroadcast logs broadcast job activity.
	SVCBroadcast *slog.Logger
	// SVCContent logs content service activity.
	SVCContent *slog.Logger
	// SVCUsers logs user service activity.
	SVCUsers *slog.Logger
)

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		levelVar.Set(selectLevel(cfg))
		num, den := parseRatioSpec(cfg.Logging.DebugSample)
		debugSampler.Set(num, den)

		outputs, closers, err := buildOutputs(cfg)
		if err != nil {
			initErr = err
			return
		}
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		handler := newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   selectFormat(cfg),
			keyOrder: append([]string(nil), defaultKeyOrder...),
		})

		L = slog.New(handler)
		slog.SetDefault(L)

		wireComponents()
		logStartup(cfg)
	})
	return initErr
}

func wireComponents() {
	TG = L.With("component", "tg")
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	SVCSessions = L.With("component", "service.sessions")
	SVCAccess = L.With("component", "service.access")
	SVCGate = L.With("component", "service.gate")
	SVCWizard = L.With("component", "service.wizard")
	SVCBroadcast = L.With("component", "service.broadcast")
	SVCContent = L.With("component", "service.content")
	SVCUsers = L.With("component", "service.users")
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil && cfg.Logging.Profile != "" {
		attrs = append(attrs, slog.String("cfg_profile", cfg.Logging.Profile))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var first error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil && first == nil {
			first = err
		}
		if err := logWriter.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	lvl := ""
	if cfg != nil {
		lvl = cfg.Logging.Level
	}
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func selectFormat(cfg *coreconfig.Config) string {
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Format), "json") {
		return formatJSON
	}
	return formatKV
}

// buildOutputs opens configured file sinks in addition to stdout.
func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	outputs := []io.Writer{os.Stdout}
	var closers []io.Closer

	if cfg == nil || cfg.Logging.Dir == "" {
		return outputs, closers, nil
	}
	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		return nil, nil, err
	}
	for _, name := range []string{cfg.Logging.BotFile, cfg.Logging.ErrorsFile} {
		if name == "" {
			continue
		}
		f, err := os.OpenFile(filepath.Join(cfg.Logging.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		outputs = append(outputs, f)
		closers = append(closers, f)
	}
	return outputs, closers, nil
}

// ShouldSampleDebug reports whether a debug-level event should be emitted.
func ShouldSampleDebug() bool {
	if levelVar.Level() > slog.LevelDebug {
		return false
	}
	return debugSampler.Allow()
}
