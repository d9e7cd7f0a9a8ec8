package logging

import (
	"strings"
	"sync"
)

const defaultCaptureLines = 32

// LogCaptureWriter keeps the most recent lines written to it.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// NewLogCaptureWriter keeps up to n lines.
func NewLogCaptureWriter(n int) *LogCaptureWriter {
	if n <= 0 {
		n = defaultCaptureLines
	}
	return &LogCaptureWriter{lines: make([]string, n)}
}

// GlobalLogCapture feeds the status line of the panel.
var GlobalLogCapture = NewLogCaptureWriter(defaultCaptureLines)

// GlobalEventCapture holds the narration event feed.
var GlobalEventCapture = NewLogCaptureWriter(defaultCaptureLines)

// Write stores p as one line; slog handlers write one record per call.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines[w.next] = line
	w.next = (w.next + 1) % len(w.lines)
	if w.next == 0 {
		w.full = true
	}
	return len(p), nil
}

// GetLastLine returns the most recent line.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.full && w.next == 0 {
		return ""
	}
	return w.lines[(w.next-1+len(w.lines))%len(w.lines)]
}

// Recent returns up to n lines, oldest first.
func (w *LogCaptureWriter) Recent(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	count := w.next
	if w.full {
		count = len(w.lines)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		idx := i
		if w.full {
			idx = (w.next + i) % len(w.lines)
		}
		out = append(out, w.lines[idx])
	}
	return out
}
