package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assetreg/internal/config"
	"assetreg/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithBatchID(context.Background(), "0123456789abcdef")
	ctx = logging.WithCategory(ctx, "archive")
	ctx = logging.WithLogicalPath(ctx, "data/pak01.str")
	logging.NewComponentLogger(logging.WithContext(ctx, logger), "ingest").Info("entry stored", logging.String("result", "inserted"))
	logger.Debug("debug line")
	return logPath, func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "assetreg.log")); err != nil {
		t.Fatalf("expected log file under data dir: %v", err)
	}
}

func TestConsoleLoggerFormatsSubject(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	content := read()

	if !strings.Contains(content, "INFO [ingest] Batch 01234567 · data/pak01.str (archive) - entry stored") {
		t.Fatalf("unexpected header: %q", content)
	}
	if !strings.Contains(content, "    - result: inserted") {
		t.Fatalf("expected result field, got %q", content)
	}
	if strings.Contains(content, "debug line") {
		t.Fatalf("debug line leaked at info level: %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("file output must not carry color codes: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	_, read := newFileLogger(t, "console", "debug")
	content := read()
	if !strings.Contains(content, "debug line") || !strings.Contains(content, ".go:") {
		t.Fatalf("expected debug line with caller, got %q", content)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(strings.Split(read(), "\n")[0])

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	for key, want := range map[string]string{
		"level":                  "info",
		"msg":                    "entry stored",
		logging.FieldBatchID:     "0123456789abcdef",
		logging.FieldCategory:    "archive",
		logging.FieldLogicalPath: "data/pak01.str",
		logging.FieldComponent:   "ingest",
		"result":                 "inserted",
	} {
		if payload[key] != want {
			t.Fatalf("%s = %v, want %q", key, payload[key], want)
		}
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestForcedColor(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "color.log")
	on := true
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}, Color: &on})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Error("boom", logging.Error(errors.New("disk full")))
	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "\x1b[31mERROR\x1b[0m") {
		t.Fatalf("expected red error label, got %q", data)
	}
	if !strings.Contains(string(data), `error: "disk full"`) {
		t.Fatalf("expected quoted error value, got %q", data)
	}
}

func TestNopAndContextHelpers(t *testing.T) {
	logging.NewNop().Info("discarded")
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	ctx := logging.WithBatchID(context.Background(), "  ")
	if _, ok := logging.BatchIDFromContext(ctx); ok {
		t.Fatal("blank batch id should not be stored")
	}
	if got := logging.FormatSubject("", "", "a.txt"); got != "a.txt" {
		t.Fatalf("FormatSubject = %q", got)
	}
}

func TestDurationRendering(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"json", "console"} {
		logPath := filepath.Join(dir, format+".log")
		logger, err := logging.New(logging.Options{Format: format, OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		logger.Info("batch finished", logging.Duration("duration", 1534567*time.Microsecond), logging.String("note", "two words"))
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read %s log: %v", format, err)
		}
		content := string(data)
		switch format {
		case "json":
			var payload map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
				t.Fatalf("invalid json %q: %v", content, err)
			}
			if payload["duration_ms"] != float64(1534) {
				t.Fatalf("duration_ms = %v, want 1534", payload["duration_ms"])
			}
			if _, ok := payload["duration"]; ok {
				t.Fatalf("raw duration key should be replaced: %v", payload)
			}
			ts, _ := payload["ts"].(string)
			if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
				t.Fatalf("ts %q not RFC3339: %v", ts, err)
			}
		case "console":
			if !strings.Contains(content, "    - duration: 1.535s") {
				t.Fatalf("expected rounded duration, got %q", content)
			}
			if !strings.Contains(content, `    - note: "two words"`) {
				t.Fatalf("expected quoted note, got %q", content)
			}
		}
	}
}
