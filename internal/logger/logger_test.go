package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blobnet/internal/config"

	"github.com/spf13/cobra"
)

// ==================== Logger Tests ====================

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty", ""} {
		t.Run(format, func(t *testing.T) {
			l, err := New(config.LogConfig{Level: "info", Format: format, Output: "stderr"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer l.Close()
			if l.Logger == nil {
				t.Fatal("expected non-nil slog logger")
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobnet.log")

	l, err := New(config.LogConfig{Level: "debug", Format: "json", Output: "none", FilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.Info("download finished", "sd_hash", "abc")
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "download finished" || entry["sd_hash"] != "abc" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_RedactsConfiguredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobnet.log")

	l, err := New(config.LogConfig{
		Format:       "json",
		Output:       "none",
		FilePath:     path,
		RedactFields: []string{"private_key"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info("identity loaded", "private_key", "hunter2", "peer_id", "12D3")
	l.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hunter2") {
		t.Error("secret leaked into log")
	}
	if !strings.Contains(string(data), "12D3") {
		t.Error("non-secret field missing")
	}
}

func TestLogger_WithAndComponent(t *testing.T) {
	l := Nop()
	if l.With("k", "v") == nil || l.WithGroup("g") == nil || l.Component("download") == nil {
		t.Fatal("derived loggers should not be nil")
	}
	if err := l.With("k", "v").Close(); err != nil {
		t.Errorf("derived logger close should be a no-op: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ==================== Redaction Tests ====================

func TestRedactingHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewRedactingHandler(slog.NewJSONHandler(buf, nil), []string{"Token", " "})
	l := slog.New(h).With("api_token", "abc")

	l.Info("msg", slog.Group("auth", slog.String("refresh_token", "def"), slog.String("user", "bob")))

	out := buf.String()
	if strings.Contains(out, "abc") || strings.Contains(out, "def") {
		t.Errorf("token leaked: %s", out)
	}
	if !strings.Contains(out, "bob") {
		t.Errorf("expected user to survive: %s", out)
	}
	if !strings.Contains(out, RedactedValue) {
		t.Errorf("expected redaction marker: %s", out)
	}
}

// ==================== Console Tests ====================

func TestConsoleHandler_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewConsoleHandler(buf, &ConsoleHandlerOptions{Level: slog.LevelWarn, NoColor: true})
	l := slog.New(h)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}

	l.Info("hidden")
	l.Warn("probe failed", "peer", "10.0.0.1:3333")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered")
	}
	if !strings.Contains(out, "probe failed") || !strings.Contains(out, "10.0.0.1:3333") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestConsoleHandler_GroupsFlatten(t *testing.T) {
	buf := &bytes.Buffer{}
	l := slog.New(NewConsoleHandler(buf, &ConsoleHandlerOptions{NoColor: true})).WithGroup("dl")

	l.Info("started", "sd_hash", "abc")

	if !strings.Contains(buf.String(), "dl.sd_hash") {
		t.Errorf("expected dotted key, got %q", buf.String())
	}
}

func TestCharmLogLevel(t *testing.T) {
	if charmLogLevel(slog.LevelDebug-4).String() != "debug" {
		t.Error("levels below debug should map to debug")
	}
	if charmLogLevel(slog.LevelError+4).String() != "error" {
		t.Error("levels above error should map to error")
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer is not a terminal")
	}
}

// ==================== Context Tests ====================

func TestCommandContext(t *testing.T) {
	cmd := &cobra.Command{Use: "get"}
	cc := NewCommandContext(cmd, []string{"lbry://what"})

	if cc.Command != "get" {
		t.Errorf("unexpected command %q", cc.Command)
	}
	if cc.RequestID == "" {
		t.Error("expected request id")
	}

	ctx := WithCommandContext(context.Background(), cc)
	if CommandContextFrom(ctx) != cc {
		t.Error("context round trip failed")
	}
	if CommandContextFrom(context.Background()) != nil {
		t.Error("expected nil without context")
	}

	attrs := cc.LogAttrs()
	if len(attrs) != 5 {
		t.Errorf("expected 5 attrs with args, got %d", len(attrs))
	}
	if (*CommandContext)(nil).LogAttrs() != nil {
		t.Error("nil context should have no attrs")
	}
	if cc.LogGroup().Key != "context" {
		t.Error("expected context group")
	}
}

func TestDaemonContext_UniqueRequestIDs(t *testing.T) {
	a := NewDaemonContext("acquire")
	b := NewDaemonContext("acquire")
	if a.RequestID == b.RequestID {
		t.Error("request ids should differ")
	}
}

func TestLoggerFrom(t *testing.T) {
	l := Nop()
	ctx := WithLogger(context.Background(), l)
	if LoggerFrom(ctx) != l {
		t.Error("expected stored logger")
	}
	if LoggerFrom(context.Background()) == nil {
		t.Error("expected default logger")
	}
}

// ==================== Error Tests ====================

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	err := WrapError(base, "fetch descriptor")

	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to base")
	}
	if err.Error() != "fetch descriptor: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var we *WrappedError
	if !errors.As(err, &we) || !strings.Contains(we.Caller(), "logger_test.go") {
		t.Errorf("expected caller info, got %v", we)
	}

	if WrapError(nil, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWithError(t *testing.T) {
	if WithError(nil).Key != "" {
		t.Error("nil error should produce empty attr")
	}

	attr := WithError(fmt.Errorf("outer: %w", WrapError(errors.New("inner"), "mid")))
	if attr.Key != "error" {
		t.Errorf("unexpected key %q", attr.Key)
	}

	var keys []string
	for _, a := range attr.Value.Group() {
		keys = append(keys, a.Key)
	}
	joined := strings.Join(keys, ",")
	if !strings.Contains(joined, "cause") || !strings.Contains(joined, "caller") {
		t.Errorf("expected cause and caller, got %v", keys)
	}
}

func TestErrorGroup_Chain(t *testing.T) {
	attr := ErrorGroup(fmt.Errorf("a: %w", fmt.Errorf("b: %w", errors.New("c"))))
	var hasChain bool
	for _, a := range attr.Value.Group() {
		if a.Key == "chain" {
			hasChain = true
		}
	}
	if !hasChain {
		t.Error("expected chain attribute")
	}
	if ErrorGroup(nil).Key != "" {
		t.Error("nil error should produce empty attr")
	}
}

// ==================== Journal Tests ====================

func TestJournal_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "downloads.jsonl")
	j, err := NewJournal(path, 0)
	if err != nil {
		t.Fatalf("NewJournal failed: %v", err)
	}

	ctx := WithCommandContext(context.Background(), NewDaemonContext("get"))
	j.Record(ctx, "download_finished", slog.String("sd_hash", "abc"))
	j.Record(ctx, "download_errored", slog.String("error", "timeout"))
	if err := j.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["msg"] != "download_finished" || lines[0]["request_id"] == nil {
		t.Errorf("unexpected first line %v", lines[0])
	}
}

func TestJournal_NilSafe(t *testing.T) {
	var j *Journal
	j.Record(context.Background(), "ignored")
	if err := j.Close(); err != nil {
		t.Errorf("nil close should succeed: %v", err)
	}
	if _, err := NewJournal("", 0); err == nil {
		t.Error("expected error for empty path")
	}
}
