package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSynthesisError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "SynthesisError", err: NewSynthesisError("Kore", ErrNoAudio), expected: true},
		{name: "Wrapped", err: errors.Join(errors.New("ctx"), NewSynthesisError("", ErrNoAudio)), expected: true},
		{name: "Standard Error", err: errors.New("some regular error"), expected: false},
		{name: "Nil Error", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSynthesisError(tt.err); got != tt.expected {
				t.Errorf("IsSynthesisError() = %v, want %v", got, tt.expected)
			}
		})
	}

	err := NewSynthesisError("Kore", ErrNoAudio)
	if !errors.Is(err, ErrNoAudio) {
		t.Error("SynthesisError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "Kore") {
		t.Errorf("Error() = %q, want voice name", err.Error())
	}
}

func TestPrepareText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Plain", input: "Welcome to Peru.", want: "Welcome to Peru."},
		{name: "Speaker label", input: "Narrator: Welcome to Peru.", want: "Welcome to Peru."},
		{name: "Label with role", input: "Guide (female): Hola.", want: "Hola."},
		{name: "Markdown", input: "The **Inca** _empire_.", want: "The Inca empire."},
		{name: "Whitespace", input: "  one\n\n two\tthree ", want: "one two three"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrepareText(tt.input); got != tt.want {
				t.Errorf("PrepareText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tts.log")
	SetLogPath(path)
	t.Cleanup(func() { SetLogPath("logs/tts.log") })

	Log(Entry{Provider: "gemini", Voice: "Zephyr", Prompt: "Speak the following text clearly: Hello", Bytes: 48000, Latency: 850 * time.Millisecond})
	Log(Entry{Provider: "gemini", Voice: "Kore", Prompt: "Speak the following text clearly: Fail", Err: ErrNoAudio})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[gemini] voice=Zephyr audio=1.00s bytes=48000 latency=850ms") {
		t.Errorf("missing success entry: %s", content)
	}
	if !strings.Contains(content, "voice=Kore ERROR(no audio data generated)") {
		t.Errorf("missing error entry: %s", content)
	}
	if !strings.Contains(content, "PROMPT:\nSpeak the following text clearly: Hello") {
		t.Errorf("missing prompt: %s", content)
	}
}

