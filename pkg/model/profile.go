package model

import (
	"fmt"
	"time"
)

// CulturalProfile is the generated description of a country shown next to the map.
type CulturalProfile struct {
	Country           string `json:"country"`
	OfficialName      string `json:"officialName"`
	Capital           string `json:"capital"`
	GeographyFact     string `json:"geographyFact"`
	Anthropology      string `json:"anthropology"`
	Culture           string `json:"culture"`
	LanguageName      string `json:"languageName"`
	LanguageGreeting  string `json:"languageGreeting"`
	PhoneticGreeting  string `json:"phoneticGreeting"`
	OutfitDescription string `json:"outfitDescription"`
	HistoricalContext string `json:"historicalContext"`

	// Metadata, not part of the generated payload
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ProfileFields lists the JSON keys every generated profile must carry.
var ProfileFields = []string{
	"country",
	"officialName",
	"capital",
	"geographyFact",
	"anthropology",
	"culture",
	"languageName",
	"languageGreeting",
	"phoneticGreeting",
	"outfitDescription",
	"historicalContext",
}

// Missing returns the JSON keys of required fields that are empty.
func (p *CulturalProfile) Missing() []string {
	values := []string{
		p.Country,
		p.OfficialName,
		p.Capital,
		p.GeographyFact,
		p.Anthropology,
		p.Culture,
		p.LanguageName,
		p.LanguageGreeting,
		p.PhoneticGreeting,
		p.OutfitDescription,
		p.HistoricalContext,
	}
	var missing []string
	for i, v := range values {
		if v == "" {
			missing = append(missing, ProfileFields[i])
		}
	}
	return missing
}

// WelcomeScript is the narration text spoken when a profile is first shown.
func (p *CulturalProfile) WelcomeScript() string {
	return fmt.Sprintf("Welcome to %s. In %s, we say %s. %s",
		p.Country, p.LanguageName, p.LanguageGreeting, p.HistoricalContext)
}
