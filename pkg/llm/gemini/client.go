package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"heritagevoyager/pkg/backoff"
	"heritagevoyager/pkg/config"
	"heritagevoyager/pkg/model"
	"heritagevoyager/pkg/tracker"
)

const (
	DefaultModel = "gemini-3-flash-preview"

	trackerName = "gemini"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("gemini client not configured")

// ProfileFetchError reports a failed profile request for a country.
type ProfileFetchError struct {
	Country string
	Err     error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("fetch profile for %q: %v", e.Country, e.Err)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

// generator is the subset of the genai models service used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates cultural profiles with Google Gemini.
type Client struct {
	genaiClient *genai.Client
	gen         generator
	apiKey      string
	modelName   string
	profiles    map[string]string // Map intent -> modelName
	tracker     *tracker.Tracker
	logPath     string
	backoff     *backoff.ProviderBackoff

	mu sync.RWMutex
}

// NewClient creates a new Gemini client.
func NewClient(cfg config.LLMConfig, logPath string, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t, logPath: logPath}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = cfg.Key
	c.modelName = cfg.Model
	c.profiles = cfg.Profiles

	if c.modelName == "" {
		c.modelName = DefaultModel
	}

	if c.apiKey == "" {
		c.genaiClient = nil
		c.gen = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	c.gen = client.Models

	// Startup proceeds on a flaky key; generation calls surface the real error.
	if err := c.validateModel(context.Background()); err != nil {
		slog.Warn("Gemini model validation failed (proceeding anyway)", "error", err)
	}

	return nil
}

// SetBackoff spaces out requests after upstream failures.
func (c *Client) SetBackoff(b *backoff.ProviderBackoff) {
	c.mu.Lock()
	c.backoff = b
	c.mu.Unlock()
}

// Configured reports whether an API key was set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen != nil
}

// Close cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
	c.gen = nil
}

// FetchProfile asks the model for the profile of country. Every failure,
// including an incomplete answer, is returned as *ProfileFetchError.
func (c *Client) FetchProfile(ctx context.Context, country string) (*model.CulturalProfile, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, &ProfileFetchError{Country: country, Err: fmt.Errorf("empty country name")}
	}

	var p model.CulturalProfile
	modelName, err := c.GenerateJSON(ctx, "profile", profilePrompt(country), profileSchema(), &p)
	if err != nil {
		return nil, &ProfileFetchError{Country: country, Err: err}
	}
	if missing := p.Missing(); len(missing) > 0 {
		c.track(false)
		return nil, &ProfileFetchError{Country: country, Err: fmt.Errorf("incomplete profile, missing %s", strings.Join(missing, ", "))}
	}

	p.Model = modelName
	p.CreatedAt = time.Now()
	slog.Info("Gemini: profile generated", "country", country, "model", modelName)
	return &p, nil
}

// GenerateJSON sends a prompt constrained by schema and unmarshals the
// response into target. It returns the model that answered.
func (c *Client) GenerateJSON(ctx context.Context, name, prompt string, schema *genai.Schema, target any) (string, error) {
	c.mu.RLock()
	gen := c.gen
	modelName := c.resolveModel(name)
	bo := c.backoff
	c.mu.RUnlock()

	if gen == nil {
		return modelName, ErrNotConfigured
	}
	if err := bo.Wait(ctx, trackerName); err != nil {
		return modelName, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := gen.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		c.logPrompt(name, prompt, fmt.Sprintf("ERROR: %v", err))
		c.track(false)
		bo.RecordFailure(trackerName)
		return modelName, fmt.Errorf("generate json error: %w", err)
	}

	bo.RecordSuccess(trackerName)

	text, err := getResponseText(resp)
	if err != nil {
		c.logPrompt(name, prompt, fmt.Sprintf("TEXT_PARSE_ERROR: %v", err))
		c.track(false)
		return modelName, err
	}

	// Sanitize Markdown JSON blocks if present
	cleaned := cleanJSONBlock(text)
	c.logPrompt(name, prompt, cleaned)

	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		c.track(false)
		return modelName, fmt.Errorf("failed to unmarshal JSON response: %w. Response: %s", err, cleaned)
	}

	c.track(true)
	return modelName, nil
}

// resolveModel returns the model for an intent. c.mu must be held.
func (c *Client) resolveModel(intent string) string {
	if m, ok := c.profiles[intent]; ok && m != "" {
		return m
	}
	return c.modelName
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess(trackerName)
	} else {
		c.tracker.TrackAPIFailure(trackerName)
	}
}

func profilePrompt(country string) string {
	return fmt.Sprintf(`Generate a detailed cultural and geographical profile for %s.
Include the official name, the capital, one striking geography fact, a short
anthropological overview, notable cultural traditions, the most widely spoken
language with a common greeting in that language and its phonetic pronunciation,
a description of a traditional outfit, and a brief historical context suitable
for being read aloud.`, country)
}

func profileSchema() *genai.Schema {
	descriptions := map[string]string{
		"country":           "Common English name of the country",
		"officialName":      "Official name of the country",
		"capital":           "Capital city",
		"geographyFact":     "One notable geography fact",
		"anthropology":      "Short anthropological overview of the people",
		"culture":           "Notable cultural traditions",
		"languageName":      "Most widely spoken language",
		"languageGreeting":  "A common greeting in that language",
		"phoneticGreeting":  "Phonetic pronunciation of the greeting",
		"outfitDescription": "Description of a traditional outfit",
		"historicalContext": "Brief historical context suitable for narration",
	}

	props := make(map[string]*genai.Schema, len(model.ProfileFields))
	for _, f := range model.ProfileFields {
		props[f] = &genai.Schema{Type: genai.TypeString, Description: descriptions[f]}
	}
	required := make([]string, len(model.ProfileFields))
	copy(required, model.ProfileFields)

	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: required,
	}
}

func (c *Client) logPrompt(name, prompt, response string) {
	if c.logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return
	}

	f, err := os.OpenFile(c.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry := fmt.Sprintf("[%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
		timestamp, name, prompt, wordWrap(response, 80), strings.Repeat("-", 80))

	_, _ = f.WriteString(entry)
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("empty candidate (finish reason %s)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		lineLen := 0
		for j, word := range words {
			if j > 0 {
				if lineLen+len(word)+1 > width {
					result.WriteString("\n")
					lineLen = 0
				} else {
					result.WriteString(" ")
					lineLen++
				}
			}
			result.WriteString(word)
			lineLen += len(word)
		}
	}
	return result.String()
}

// validateModel checks if the configured model is available for the API key.
func (c *Client) validateModel(ctx context.Context) error {
	name := c.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	_, err := c.genaiClient.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", c.modelName)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models...", "model", c.modelName, "error", err)

	page, listErr := c.genaiClient.Models.List(ctx, nil)
	if listErr != nil {
		slog.Warn("Failed to list models for recovery", "error", listErr)
		return nil
	}

	var available []string
	for {
		for _, m := range page.Items {
			if strings.Contains(strings.ToLower(m.Name), "gemini") {
				available = append(available, m.Name)
			}
		}
		next, nextErr := page.Next(ctx)
		if errors.Is(nextErr, genai.ErrPageDone) || errors.Is(nextErr, iterator.Done) {
			break
		}
		if nextErr != nil {
			slog.Debug("Gemini: model listing stopped", "error", nextErr)
			break
		}
		page = next
	}

	slog.Error("Configured model not found", "configured", c.modelName)
	for _, m := range available {
		slog.Error("- " + m)
	}

	return nil
}
