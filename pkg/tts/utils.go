package tts

import (
	"regexp"
	"strings"
)

var (
	speakerLabelRegex = regexp.MustCompile(`(?m)^[A-Za-z]+(\s*\([^)]+\))?:\s*`)
	markdownRegex     = regexp.MustCompile("[*_`#]+")
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

// StripSpeakerLabels removes speaker labels like "Narrator:" or "Guide (female):" from scripts.
func StripSpeakerLabels(script string) string {
	return speakerLabelRegex.ReplaceAllString(script, "")
}

// PrepareText strips labels and markdown emphasis and collapses whitespace
// so the voice does not read formatting aloud.
func PrepareText(text string) string {
	text = StripSpeakerLabels(text)
	text = markdownRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}
