package audio

import "strings"

// DefaultVoice is used when no voice is chosen.
const DefaultVoice = "Zephyr"

// VoiceProfile represents a Gemini TTS prebuilt voice.
type VoiceProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Style  string `json:"style"`
}

// Voices are the narrators offered in the panel.
var Voices = []VoiceProfile{
	{ID: "kore", Name: "Kore", Gender: "Female", Style: "Calm, soothing, gentle"},
	{ID: "puck", Name: "Puck", Gender: "Male", Style: "Playful, upbeat, animated"},
	{ID: "charon", Name: "Charon", Gender: "Male", Style: "Deep, informative, steady"},
	{ID: "fenrir", Name: "Fenrir", Gender: "Male", Style: "Resonant, excitable, dramatic"},
	{ID: "zephyr", Name: "Zephyr", Gender: "Female", Style: "Bright, youthful, spirited"},
}

// ParseVoice finds a voice by name or ID, ignoring case.
func ParseVoice(s string) (VoiceProfile, bool) {
	s = strings.TrimSpace(s)
	for _, v := range Voices {
		if strings.EqualFold(v.Name, s) || v.ID == strings.ToLower(s) {
			return v, true
		}
	}
	return VoiceProfile{}, false
}

// VoiceOrDefault returns the canonical voice name for s, or DefaultVoice.
func VoiceOrDefault(s string) string {
	if v, ok := ParseVoice(s); ok {
		return v.Name
	}
	return DefaultVoice
}
