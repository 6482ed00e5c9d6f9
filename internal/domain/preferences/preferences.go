package preferences

import (
	"strings"

	"github.com/kailas-cloud/screener/internal/domain"
)

// SoftPreferences are optional signals that influence ranking but never
// cause an item to be excluded.
type SoftPreferences struct {
	PreferenceText string
	Interests      []string
	ActivityLevel  string
	Sports         []string
	Languages      []string
	PriceMax       *int64 // minor currency units
	Notes          string
}

// Validate rejects preference values that cannot be used for scoring.
func (p *SoftPreferences) Validate() error {
	if p.PriceMax != nil && *p.PriceMax <= 0 {
		return domain.NewConfigError("price_max", "must be positive")
	}
	return nil
}

// Text returns the free-text preference used for ranking.
func (p *SoftPreferences) Text() string {
	return strings.TrimSpace(p.PreferenceText)
}

// ComposedText returns the preference text followed by the structured
// signals, for deployments that embed richer query text.
func (p *SoftPreferences) ComposedText() string {
	parts := make([]string, 0, 6)
	if t := p.Text(); t != "" {
		parts = append(parts, t)
	}
	if s := joinNonBlank(p.Interests); s != "" {
		parts = append(parts, "interests: "+s)
	}
	if a := strings.TrimSpace(p.ActivityLevel); a != "" {
		parts = append(parts, "activity level: "+a)
	}
	if s := joinNonBlank(p.Sports); s != "" {
		parts = append(parts, "sports: "+s)
	}
	if s := joinNonBlank(p.Languages); s != "" {
		parts = append(parts, "languages: "+s)
	}
	if n := strings.TrimSpace(p.Notes); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, ". ")
}

func joinNonBlank(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}
