package chi

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/constraints"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/preferences"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
	screeninguc "github.com/kailas-cloud/screener/internal/usecase/screening"
)

// ScreeningRequest is the body of POST /v1/screenings.
type ScreeningRequest struct {
	HardConstraints HardConstraintsDTO `json:"hard_constraints"`
	SoftPreferences SoftPreferencesDTO `json:"soft_preferences"`
}

// HardConstraintsDTO mirrors the synthesizer output for hard constraints.
type HardConstraintsDTO struct {
	Country                *string                        `json:"country"`
	TargetLatitude         *float64                       `json:"target_latitude"`
	TargetLongitude        *float64                       `json:"target_longitude"`
	TargetCity             *string                        `json:"target_city"`
	AccommodationLatitude  *float64                       `json:"accommodation_latitude"`
	AccommodationLongitude *float64                       `json:"accommodation_longitude"`
	HolidayBeginDate       *string                        `json:"holiday_begin_date"`
	HolidayEndDate         *string                        `json:"holiday_end_date"`
	NotAvailableDateTimes  []string                       `json:"not_available_date_times"`
	BlockedIntervals       []IntervalDTO                  `json:"blocked_intervals"`
	Age                    *int                           `json:"age"`
	MaxPax                 *int                           `json:"max_pax"`
	SemanticExclusions     constraints.SemanticExclusions `json:"semantic_exclusions"`
}

// IntervalDTO is a blocked datetime range.
type IntervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SoftPreferencesDTO mirrors the synthesizer output for soft preferences.
type SoftPreferencesDTO struct {
	PreferenceText string   `json:"preference_text"`
	Interests      []string `json:"interests"`
	ActivityLevel  *string  `json:"activity_level"`
	Sports         []string `json:"sports"`
	Languages      []string `json:"languages"`
	PriceMax       *int64   `json:"price_max"`
	Notes          *string  `json:"notes"`
}

// Accepted datetime layouts for blocked instants, most specific first.
// Values without an offset are read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// toRequest converts the wire request into the use case request.
// Shape problems the validator cannot see are reported as *domain.ConfigError.
func (req *ScreeningRequest) toRequest() (*screeninguc.Request, error) {
	hc, err := req.HardConstraints.toDomain()
	if err != nil {
		return nil, err
	}
	return &screeninguc.Request{
		Constraints: hc,
		Preferences: req.SoftPreferences.toDomain(),
	}, nil
}

func (d *HardConstraintsDTO) toDomain() (constraints.HardConstraints, error) {
	hc := constraints.HardConstraints{
		Country:    blankToNil(d.Country),
		TargetCity: blankToNil(d.TargetCity),
		Age:        d.Age,
		MaxPax:     d.MaxPax,
		Exclusions: d.SemanticExclusions,
	}

	var err error
	if hc.Target, err = point("target_location", d.TargetLatitude, d.TargetLongitude); err != nil {
		return hc, err
	}
	if hc.Accommodation, err = point("accommodation_location",
		d.AccommodationLatitude, d.AccommodationLongitude); err != nil {
		return hc, err
	}
	if hc.DateBegin, err = date("holiday_begin_date", d.HolidayBeginDate); err != nil {
		return hc, err
	}
	if hc.DateEnd, err = date("holiday_end_date", d.HolidayEndDate); err != nil {
		return hc, err
	}

	for i, s := range d.NotAvailableDateTimes {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, ok := parseDateTime(s)
		if !ok {
			return hc, domain.NewConfigError(fmt.Sprintf("not_available_date_times[%d]", i),
				"must be an ISO 8601 datetime")
		}
		hc.Blocked = append(hc.Blocked, timeframe.Interval{Start: t, End: t})
	}
	for i, iv := range d.BlockedIntervals {
		field := fmt.Sprintf("blocked_intervals[%d]", i)
		start, ok := parseDateTime(iv.Start)
		if !ok {
			return hc, domain.NewConfigError(field, "start must be an ISO 8601 datetime")
		}
		end, ok := parseDateTime(iv.End)
		if !ok {
			return hc, domain.NewConfigError(field, "end must be an ISO 8601 datetime")
		}
		interval, err := timeframe.NewInterval(start, end)
		if err != nil {
			return hc, domain.NewConfigError(field, "end is before start")
		}
		hc.Blocked = append(hc.Blocked, interval)
	}
	return hc, nil
}

func (d *SoftPreferencesDTO) toDomain() preferences.SoftPreferences {
	return preferences.SoftPreferences{
		PreferenceText: d.PreferenceText,
		Interests:      d.Interests,
		ActivityLevel:  deref(d.ActivityLevel),
		Sports:         d.Sports,
		Languages:      d.Languages,
		PriceMax:       d.PriceMax,
		Notes:          deref(d.Notes),
	}
}

// point requires both or neither coordinate. Range checks happen in
// constraints.Validate so the error names the same field either way.
func point(field string, lat, lon *float64) (*geo.Point, error) {
	switch {
	case lat == nil && lon == nil:
		return nil, nil
	case lat == nil || lon == nil:
		return nil, domain.NewConfigError(field, "latitude and longitude must be set together")
	}
	return &geo.Point{Latitude: *lat, Longitude: *lon}, nil
}

func date(field string, s *string) (*timeframe.Date, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if len(v) > len(timeframe.DateLayout) && v[len(timeframe.DateLayout)] == 'T' {
		v = v[:len(timeframe.DateLayout)]
	}
	d, err := timeframe.ParseDate(v)
	if err != nil {
		return nil, domain.NewConfigError(field, "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeInvalidConstraints  = "invalid_constraints"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternalError       = "internal_error"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
