package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// 24 kHz mono int16
const pcmBytesPerSecond = 24000 * 2

var (
	logPath = "logs/tts.log"
	mu      sync.Mutex
)

// Entry is one synthesis call in the history log.
type Entry struct {
	Provider string
	Voice    string
	Prompt   string
	Bytes    int
	Latency  time.Duration
	Err      error
}

// SetLogPath configures the path for the TTS log file. An empty path
// disables the log.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logPath = path
}

// Log appends e to the history log.
func Log(e Entry) {
	mu.Lock()
	defer mu.Unlock()
	if logPath == "" {
		return
	}

	_ = os.MkdirAll(filepath.Dir(logPath), 0o755)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.WriteString(e.format(time.Now()))
}

func (e Entry) format(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] voice=%s", now.Format("2006-01-02 15:04:05"), e.Provider, e.Voice)
	if e.Err != nil {
		fmt.Fprintf(&b, " ERROR(%v)", e.Err)
	} else {
		fmt.Fprintf(&b, " audio=%.2fs bytes=%d", float64(e.Bytes)/pcmBytesPerSecond, e.Bytes)
	}
	if e.Latency > 0 {
		fmt.Fprintf(&b, " latency=%s", e.Latency.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "\nPROMPT:\n%s\n%s\n", e.Prompt, strings.Repeat("-", 50))
	return b.String()
}
