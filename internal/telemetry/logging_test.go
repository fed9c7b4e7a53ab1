package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestShouldRedactKey(t *testing.T) {
	for _, key := range []string{"api_key", "Authorization", "telegram_token", "db_password", "client_secret"} {
		if !shouldRedactKey(key) {
			t.Errorf("expected %q to be redacted", key)
		}
	}
	for _, key := range []string{"agent_id", "task_id", "prompt", ""} {
		if shouldRedactKey(key) {
			t.Errorf("did not expect %q to be redacted", key)
		}
	}
}

func TestRedactStringValue(t *testing.T) {
	if v, ok := redactStringValue("Bearer sk-abc123"); !ok || v != "[REDACTED]" {
		t.Errorf("bearer value not redacted: %q %v", v, ok)
	}
	if _, ok := redactStringValue("plain log line"); ok {
		t.Error("plain value should not be redacted")
	}
}

func TestNewLoggerWritesFileAndRedacts(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger(dir, "info", true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("startup", "api_key", "sk-secret-value")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "logs", "system.jsonl"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "startup") {
		t.Error("log file missing the record message")
	}
	if strings.Contains(out, "sk-secret-value") {
		t.Error("secret leaked into the log file")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected a redaction marker in the log file")
	}
}

func TestInstrumentsNilSafe(t *testing.T) {
	var inst *Instruments

	ctx, span := inst.StartTaskSpan(context.Background(), "researcher", "task-1")
	if ctx == nil {
		t.Fatal("nil context from StartTaskSpan")
	}
	span.End()

	inst.RecordTaskCompleted(ctx, "researcher", time.Second)
	inst.RecordTaskFailed(ctx, "researcher", time.Second)
	if err := inst.Shutdown(ctx); err != nil {
		t.Fatalf("nil Shutdown: %v", err)
	}
}

func TestInitDisabled(t *testing.T) {
	inst, err := Init(context.Background(), OTelConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if inst != nil {
		t.Fatal("disabled config should yield nil instruments")
	}
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), OTelConfig{Enabled: true, Exporter: "jaeger-thrift"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}
