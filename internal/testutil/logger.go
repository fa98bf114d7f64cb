package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// LogCapture collects JSON log lines at every level for assertions
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// CaptureLogger returns a debug-level logger writing into a LogCapture
func CaptureLogger() (*slog.Logger, *LogCapture) {
	c := &LogCapture{}
	return slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug})), c
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Records decodes every captured line
func (c *LogCapture) Records(t testing.TB) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(c.buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		rec := map[string]any{}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("malformed log line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

// Find returns the first record with the given message, or nil
func (c *LogCapture) Find(t testing.TB, msg string) map[string]any {
	t.Helper()
	for _, rec := range c.Records(t) {
		if rec["msg"] == msg {
			return rec
		}
	}
	return nil
}
