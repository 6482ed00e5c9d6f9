package constraints

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

// Exclusion groups in the order they are joined into the exclusion text.
const (
	GroupAccessibility = "accessibility"
	GroupDiet          = "diet"
	GroupMedical       = "medical"
	GroupFears         = "fears"
)

// SemanticExclusions lists categories of content the traveler must never be offered.
type SemanticExclusions struct {
	Accessibility []string `json:"accessibility,omitempty"`
	Diet          []string `json:"diet,omitempty"`
	Medical       []string `json:"medical,omitempty"`
	Fears         []string `json:"fears,omitempty"`
}

// IsEmpty reports whether no non-blank exclusion term is present.
func (e SemanticExclusions) IsEmpty() bool {
	return len(e.Terms()) == 0
}

// Terms returns the cleaned terms: blanks dropped, duplicates removed within a
// group, each group sorted, groups concatenated in fixed order.
func (e SemanticExclusions) Terms() []string {
	var out []string
	for _, group := range [][]string{e.Accessibility, e.Diet, e.Medical, e.Fears} {
		out = append(out, cleanGroup(group)...)
	}
	return out
}

// Text renders the terms as a single string suitable for one embedding call.
func (e SemanticExclusions) Text() string {
	return strings.Join(e.Terms(), ", ")
}

func cleanGroup(group []string) []string {
	seen := make(map[string]struct{}, len(group))
	out := make([]string, 0, len(group))
	for _, term := range group {
		term = strings.Join(strings.Fields(term), " ")
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// HardConstraints are the traveler's non-negotiable requirements.
// A nil field means the constraint is absent.
type HardConstraints struct {
	Country       *string
	Target        *geo.Point
	TargetCity    *string // resolved through the geocoder when Target is nil
	Accommodation *geo.Point
	DateBegin     *timeframe.Date
	DateEnd       *timeframe.Date
	Blocked       []timeframe.Interval
	Age           *int
	MaxPax        *int
	Exclusions    SemanticExclusions
}

// IsEmpty reports whether no hard constraint is set.
func (c *HardConstraints) IsEmpty() bool {
	return c.Country == nil && c.Target == nil && c.TargetCity == nil && c.Accommodation == nil &&
		c.DateBegin == nil && c.DateEnd == nil && len(c.Blocked) == 0 &&
		c.Age == nil && c.MaxPax == nil && c.Exclusions.IsEmpty()
}

// ReferencePoint returns the accommodation if set, else the target, else nil.
// TargetCity is not consulted here; resolving it needs a geocoder.
func (c *HardConstraints) ReferencePoint() *geo.Point {
	if c.Accommodation != nil {
		return c.Accommodation
	}
	return c.Target
}

// NormalizedCountry returns the upper-cased country code, or "" when absent.
func (c *HardConstraints) NormalizedCountry() string {
	if c.Country == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*c.Country))
}

// shape is the validator view of HardConstraints.
type shape struct {
	Country string `validate:"omitempty,iso3166_1_alpha2"`
	Age     *int   `validate:"omitempty,min=0,max=130"`
	MaxPax  *int   `validate:"omitempty,min=1"`
	Target  *geoShape
	Lodging *geoShape
}

type geoShape struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// fieldNames maps validator struct fields to request field names.
var fieldNames = map[string]string{
	"Country": "country",
	"Age":     "age",
	"MaxPax":  "max_pax",
	"Target":  "target_location",
	"Lodging": "accommodation_location",
}

// Validate checks the constraints for internal consistency. Failures are
// returned as *domain.ConfigError naming the offending field.
func (c *HardConstraints) Validate() error {
	s := shape{
		Country: c.NormalizedCountry(),
		Age:     c.Age,
		MaxPax:  c.MaxPax,
	}
	if c.Country != nil && s.Country == "" {
		return domain.NewConfigError("country", "must not be blank")
	}
	if c.Target != nil {
		s.Target = &geoShape{Latitude: c.Target.Latitude, Longitude: c.Target.Longitude}
	}
	if c.Accommodation != nil {
		s.Lodging = &geoShape{Latitude: c.Accommodation.Latitude, Longitude: c.Accommodation.Longitude}
	}

	if err := instance().Struct(s); err != nil {
		return translate(err)
	}

	if c.DateBegin != nil && c.DateEnd != nil && c.DateBegin.After(*c.DateEnd) {
		return domain.NewConfigError("date_window",
			fmt.Sprintf("begin %s is after end %s", c.DateBegin, c.DateEnd))
	}
	for i, iv := range c.Blocked {
		if iv.End.Before(iv.Start) {
			return domain.NewConfigError(fmt.Sprintf("blocked_intervals[%d]", i), "end is before start")
		}
	}
	return nil
}

func translate(err error) error {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if !ok || len(verrs) == 0 {
		return domain.NewConfigError("constraints", err.Error())
	}
	fe := verrs[0]
	top := strings.Split(fe.StructNamespace(), ".")
	name := fe.StructField()
	if len(top) > 1 {
		name = top[1]
	}
	field, ok := fieldNames[name]
	if !ok {
		field = strings.ToLower(name)
	}
	return domain.NewConfigError(field, reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "iso3166_1_alpha2":
		return "must be an ISO 3166-1 alpha-2 code"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "latitude":
		return "latitude must be within [-90, 90]"
	case "longitude":
		return "longitude must be within [-180, 180]"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
