package logx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func setupTestLogger() *bytes.Buffer {
	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

func resetTestLogger() {
	SetOutput(nil)
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	NewLogger("pipeline").Info("Resolved %s", "app-open")

	output := buf.String()
	if !strings.Contains(output, "[pipeline]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO: Resolved app-open") {
		t.Errorf("Expected level and message in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("test")

	tests := []struct {
		level   Level
		logFunc func(string, ...any)
	}{
		{LevelDebug, logger.Debug},
		{LevelInfo, logger.Info},
		{LevelWarn, logger.Warn},
		{LevelError, logger.Error},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger()
			defer resetTestLogger()

			if tt.level == LevelDebug {
				SetDebugConfig(true)
				defer SetDebugConfig(false)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), string(tt.level)) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.level, buf.String())
			}
		})
	}
}

func TestDebugDisabledWritesNothing(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()
	SetDebugConfig(false)

	NewLogger("quiet").Debug("hidden")
	Debug(context.Background(), "intent", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output with debug disabled, got: %s", buf.String())
	}
}

func TestDebugDomainFilter(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()
	SetDebugConfig(true)
	SetDebugDomains([]string{"intent"})
	defer func() {
		SetDebugConfig(false)
		SetDebugDomains(nil)
	}()

	ctx := WithRequestID(context.Background(), "req-42")
	Debug(ctx, "intent", "rule %s matched", "search")
	Debug(ctx, "upstream", "should be filtered")

	output := buf.String()
	if !strings.Contains(output, "[req-42] DEBUG: [intent] rule search matched") {
		t.Errorf("Expected intent debug line, got: %s", output)
	}
	if strings.Contains(output, "should be filtered") {
		t.Errorf("Expected upstream domain to be filtered, got: %s", output)
	}
}

func TestTimestampFormat(t *testing.T) {
	buf := setupTestLogger()
	defer resetTestLogger()

	NewLogger("test").Info("timestamp test")

	output := buf.String()
	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", output[start+1:end]); err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
}

func TestWrap(t *testing.T) {
	_ = setupTestLogger()
	defer resetTestLogger()

	base := errors.New("disk full")
	err := Wrap(base, "append history")
	if !errors.Is(err, base) {
		t.Errorf("Expected wrapped error to match base")
	}
	if err.Error() != "append history: disk full" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if Wrap(nil, "noop") != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestLogBufferCapturesEntries(t *testing.T) {
	_ = setupTestLogger()
	defer resetTestLogger()

	NewLogger("buffer-test").Warn("captured %d", 7)

	found := false
	for _, e := range GetRecentLogEntries("", time.Time{}) {
		if e.Component == "buffer-test" && e.Message == "captured 7" {
			found = true
		}
	}
	if !found {
		t.Error("Expected entry in log buffer")
	}
}

func TestRingKeepsNewestEntries(t *testing.T) {
	r := &ring{entries: make([]LogEntry, 3)}
	for i := 1; i <= 5; i++ {
		r.add(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	got := r.snapshot()
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, want := range []string{"m3", "m4", "m5"} {
		if got[i].Message != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, got[i].Message)
		}
	}
}

func TestDebugEntryCarriesRequestID(t *testing.T) {
	_ = setupTestLogger()
	defer resetTestLogger()
	SetDebugConfig(true)
	defer SetDebugConfig(false)

	Debug(WithRequestID(context.Background(), "req-ring"), "dispatch", "tagged")

	entries := GetRecentLogEntries("dispatch", time.Time{})
	last := entries[len(entries)-1]
	if last.RequestID != "req-ring" || last.Domain != "dispatch" {
		t.Errorf("Unexpected entry %+v", last)
	}
}
