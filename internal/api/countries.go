package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"heritagevoyager/pkg/geo"
	"heritagevoyager/pkg/narrator"
)

// Narrator is the part of narrator.Service driven over HTTP.
type Narrator interface {
	SelectCountryAsync(name string) error
	PlayAsync(textOverride, voice string) error
	View() narrator.View
}

// Locator resolves map clicks to countries.
type Locator interface {
	Locate(lat, lon float64) (geo.CountryResult, error)
	Canonical(name string) (string, bool)
	Names() []string
}

// ProfileLister names the countries whose profiles are cached.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]string, error)
}

// CountryHandler handles selection, profile and narration endpoints.
type CountryHandler struct {
	narrator Narrator
	geo      Locator
	profiles ProfileLister
}

// NewCountryHandler creates a CountryHandler. loc may be nil when no
// country outlines are available.
func NewCountryHandler(n Narrator, loc Locator) *CountryHandler {
	return &CountryHandler{narrator: n, geo: loc}
}

// WithProfiles marks cached profiles in the country list.
func (h *CountryHandler) WithProfiles(p ProfileLister) *CountryHandler {
	h.profiles = p
	return h
}

// CountryListResponse lists selectable countries and the cached subset,
// which opens without a model call.
type CountryListResponse struct {
	Countries []string `json:"countries"`
	Cached    []string `json:"cached"`
}

type SelectRequest struct {
	Name string `json:"name"`
}

type LocateRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type LocateResponse struct {
	Status string `json:"status"`
	geo.CountryResult
}

type PlayRequest struct {
	Text  string `json:"text,omitempty"`
	Voice string `json:"voice,omitempty"`
}

// HandleSelect handles POST /api/countries/select
func (h *CountryHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if h.geo != nil {
		if canonical, ok := h.geo.Canonical(name); ok {
			name = canonical
		}
	}
	h.selectCountry(w, name, nil)
}

// HandleLocate handles POST /api/countries/locate
func (h *CountryHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	if h.geo == nil {
		http.Error(w, "country outlines not loaded", http.StatusServiceUnavailable)
		return
	}
	var req LocateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.geo.Locate(req.Lat, req.Lon)
	if err != nil {
		if !errors.Is(err, geo.ErrNoCountry) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, err)
		return
	}
	h.selectCountry(w, res.CountryName, &res)
}

func (h *CountryHandler) selectCountry(w http.ResponseWriter, name string, res *geo.CountryResult) {
	if err := h.narrator.SelectCountryAsync(name); err != nil {
		slog.Debug("Country selection rejected", "country", name, "error", err)
		writeError(w, err)
		return
	}

	resp := LocateResponse{Status: "loading"}
	if res != nil {
		resp.CountryResult = *res
	} else {
		resp.CountryName = name
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// HandleList handles GET /api/countries
func (h *CountryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resp := CountryListResponse{Countries: []string{}, Cached: []string{}}
	if h.geo != nil {
		resp.Countries = h.geo.Names()
	}
	if h.profiles != nil {
		cached, err := h.profiles.ListProfiles(r.Context())
		if err != nil {
			slog.Warn("Failed to list cached profiles", "error", err)
		}
		for _, name := range cached {
			// Profiles are stored under the clicked name; report the outline's spelling.
			if h.geo != nil {
				if canonical, ok := h.geo.Canonical(name); ok {
					name = canonical
				}
			}
			resp.Cached = append(resp.Cached, name)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleProfile handles GET /api/profile
func (h *CountryHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.narrator.View())
}

// HandlePlay handles POST /api/narration/play
func (h *CountryHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	// An empty body narrates the welcome script
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := h.narrator.PlayAsync(req.Text, req.Voice); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}
