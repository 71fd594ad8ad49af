// Package logging sets up slog with optional Sentry reporting.
// Output goes to stderr or a file; stdout belongs to the resource protocol.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	Level     slog.Level
	SentryDSN string
	Env       string
	Version   string
	LogFile   string
	Output    io.Writer
}

type Logger struct {
	*slog.Logger
	local         *slog.Logger
	sentryEnabled bool
	logFile       *os.File
}

var defaultLogger *Logger

// Init replaces the process-wide logger. A non-empty LogFile takes precedence
// over Output, which defaults to stderr.
func Init(cfg Config) error {
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
			Release:     cfg.Version,
		})
		if err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		sentryEnabled = true
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	var logFile *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = f
		logFile = f
	}

	text := slog.NewTextHandler(output, &slog.HandlerOptions{Level: cfg.Level})
	defaultLogger = &Logger{
		Logger:        slog.New(&sentryHandler{Handler: text, sentryEnabled: sentryEnabled}),
		local:         slog.New(text),
		sentryEnabled: sentryEnabled,
		logFile:       logFile,
	}
	slog.SetDefault(defaultLogger.Logger)

	return nil
}

// Flush must run before exit or buffered events are lost.
func Flush(timeout time.Duration) {
	if defaultLogger == nil {
		return
	}
	if defaultLogger.sentryEnabled {
		sentry.Flush(timeout)
	}
	if defaultLogger.logFile != nil {
		defaultLogger.logFile.Sync()
		defaultLogger.logFile.Close()
		defaultLogger.logFile = nil
	}
}

func Default() *Logger {
	if defaultLogger == nil {
		return &Logger{Logger: slog.Default()}
	}
	return defaultLogger
}

type sentryHandler struct {
	slog.Handler
	sentryEnabled bool
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}
	if h.sentryEnabled && r.Level >= slog.LevelError {
		event := sentry.NewEvent()
		event.Level = slogLevelToSentry(r.Level)
		event.Message = r.Message
		event.Timestamp = r.Time
		r.Attrs(func(a slog.Attr) bool {
			event.Extra[a.Key] = a.Value.Any()
			return true
		})
		sentry.CaptureEvent(event)
	}
	return nil
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sentryHandler{Handler: h.Handler.WithAttrs(attrs), sentryEnabled: h.sentryEnabled}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	return &sentryHandler{Handler: h.Handler.WithGroup(name), sentryEnabled: h.sentryEnabled}
}

func slogLevelToSentry(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}

func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// CaptureError reports err as one Sentry exception event and logs it.
// ctx is key/value pairs attached to both.
func CaptureError(err error, ctx ...any) {
	args := append([]any{"error", err}, ctx...)
	if defaultLogger == nil || !defaultLogger.sentryEnabled {
		Default().Error("step failed", args...)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for i := 0; i < len(ctx)-1; i += 2 {
			if key, ok := ctx[i].(string); ok {
				scope.SetExtra(key, ctx[i+1])
			}
		}
		sentry.CaptureException(err)
	})
	// the exception event above already carries the record
	defaultLogger.local.Error("step failed", args...)
}
