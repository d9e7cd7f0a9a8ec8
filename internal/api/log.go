package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"heritagevoyager/pkg/logging"
)

var attrRe = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// statusAttrs are the attributes shown on the panel status line, in display
// order. Everything else (request IDs, remotes, byte counts) is dropped.
var statusAttrs = []string{"subject", "country", "voice", "state", "cached", "duration", "position", "latency", "error"}

const maxStatusError = 40

// handleLatestLog returns the last captured log line.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log": formatLogLine(logging.GlobalLogCapture.GetLastLine()),
	})
}

// EventsResponse is the narration event feed.
type EventsResponse struct {
	Event  string   `json:"event"`
	Recent []string `json:"recent"`
}

// handleLatestEvent returns the last narration event line and up to ?n
// recent ones.
func handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, EventsResponse{
		Event:  logging.GlobalEventCapture.GetLastLine(),
		Recent: logging.GlobalEventCapture.Recent(n),
	})
}

// formatLogLine condenses a text-handler record to
// "HH:MM:SS message (subject=Japan, cached=false)".
func formatLogLine(raw string) string {
	matches := attrRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, clock string
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch m[1] {
		case "time":
			if ts, err := time.Parse(time.RFC3339, val); err == nil {
				clock = ts.Format("15:04:05")
			}
		case "msg":
			msg = val
		case "error":
			if r := []rune(val); len(r) > maxStatusError {
				val = string(r[:maxStatusError]) + "…"
			}
			attrs["error"] = val
		default:
			attrs[m[1]] = val
		}
	}
	if msg == "" {
		return raw
	}

	var shown []string
	for _, k := range statusAttrs {
		if v, ok := attrs[k]; ok && v != "" {
			shown = append(shown, k+"="+v)
		}
	}

	out := msg
	if clock != "" {
		out = clock + " " + msg
	}
	if len(shown) > 0 {
		out += " (" + strings.Join(shown, ", ") + ")"
	}
	return out
}
