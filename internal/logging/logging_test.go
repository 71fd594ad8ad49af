package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
)

func TestInitWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: slog.LevelInfo, Output: &buf}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer Flush(time.Second)

	With("invocation", "abc").Info("read issue state", "state", "Open")
	Default().Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "invocation=abc") || !strings.Contains(out, "state=Open") {
		t.Fatalf("missing attributes: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %s", out)
	}
}

func TestInitLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "resource.log")
	if err := Init(Config{Level: slog.LevelDebug, LogFile: path}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	CaptureError(errors.New("boom"), "step", "check")
	Flush(time.Second)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "boom") || !strings.Contains(string(data), "step=check") {
		t.Fatalf("unexpected log contents: %s", data)
	}
}

func TestCaptureErrorSendsOneEvent(t *testing.T) {
	const dsn = "https://public@sentry.example.com/1"
	var buf bytes.Buffer
	if err := Init(Config{Level: slog.LevelInfo, SentryDSN: dsn, Output: &buf}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: dsn,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("sentry client: %v", err)
	}
	sentry.CurrentHub().BindClient(client)
	defer func() {
		sentry.CurrentHub().BindClient(nil)
		defaultLogger = nil
	}()

	CaptureError(errors.New("boom"), "step", "check")

	if len(events) != 1 {
		t.Fatalf("expected 1 sentry event, got %d", len(events))
	}
	if len(events[0].Exception) == 0 || events[0].Exception[0].Value != "boom" {
		t.Fatalf("expected exception event for boom, got %+v", events[0])
	}
	if events[0].Extra["step"] != "check" {
		t.Fatalf("expected step extra, got %v", events[0].Extra)
	}
	if !strings.Contains(buf.String(), "error=boom") {
		t.Fatalf("expected error to be logged: %s", buf.String())
	}

	Default().Error("remote call failed", "status", 500)
	if len(events) != 2 {
		t.Fatalf("error records should still reach sentry, got %d events", len(events))
	}
}

func TestSlogLevelToSentry(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  sentry.Level
	}{
		{slog.LevelDebug, sentry.LevelDebug},
		{slog.LevelInfo, sentry.LevelInfo},
		{slog.LevelWarn, sentry.LevelWarning},
		{slog.LevelError, sentry.LevelError},
	}
	for _, tt := range tests {
		if got := slogLevelToSentry(tt.level); got != tt.want {
			t.Fatalf("slogLevelToSentry(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
