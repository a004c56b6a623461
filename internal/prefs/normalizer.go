// Package prefs turns raw request parameters plus the caller's latest résumé
// into canonical search preferences.
package prefs

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/models"
	"github.com/ajeetk7ev/JobLytic/internal/resume"
)

// Normalizer is a pure transform; it owns the fallback country applied when
// the request carries none.
type Normalizer struct {
	defaultCountry string
}

func NewNormalizer(defaultCountry string) *Normalizer {
	return &Normalizer{defaultCountry: defaultCountry}
}

// Normalize validates the résumé and coerces the raw parameters into
// SearchPreferences. Multi-valued parameters collapse to their first value;
// employment types split on commas.
func (n *Normalizer) Normalize(params url.Values, res *resume.Resume) (*models.SearchPreferences, error) {
	if res == nil {
		return nil, errors.Validation("upload resume first", nil)
	}
	if len(res.Skills) == 0 {
		return nil, errors.Validation("no skills found in resume", nil)
	}

	prefs := &models.SearchPreferences{
		Skills:          res.Skills,
		ExperienceYears: len(res.Experience),
		City:            first(params, "city"),
		Country:         n.defaultCountry,
		Role:            first(params, "role"),
		Remote:          first(params, "remote") == "true",
	}

	if country := first(params, "country"); country != "" {
		prefs.Country = country
	}

	if types := first(params, "type"); types != "" {
		prefs.EmploymentTypes = splitCSV(types)
	}

	return prefs, nil
}

// Filters extracts the upstream-facing filters from the same raw parameters.
// Shared by recommend and search mode so both coerce values identically.
func (n *Normalizer) Filters(params url.Values) models.SearchFilters {
	filters := models.SearchFilters{
		DatePosted: first(params, "date_posted"),
		Country:    n.defaultCountry,
		Remote:     first(params, "remote") == "true",
	}

	if country := first(params, "country"); country != "" {
		filters.Country = country
	}
	if types := first(params, "type"); types != "" {
		filters.EmploymentTypes = splitCSV(types)
	}
	if radius := first(params, "radius"); radius != "" {
		if r, err := strconv.Atoi(radius); err == nil && r > 0 {
			filters.Radius = r
		}
	}
	if excluded := first(params, "exclude_publishers"); excluded != "" {
		filters.ExcludePublishers = splitCSV(excluded)
	}

	return filters
}

// first collapses an absent/single/multi-valued query parameter to one
// scalar, taking the first element when a collection was given.
func first(params url.Values, key string) string {
	values, ok := params[key]
	if !ok || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
