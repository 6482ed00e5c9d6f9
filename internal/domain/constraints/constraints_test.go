package constraints

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func datePtr(y int, m time.Month, d int) *timeframe.Date {
	v := timeframe.NewDate(y, m, d)
	return &v
}

func TestSemanticExclusions_Terms(t *testing.T) {
	ex := SemanticExclusions{
		Accessibility: []string{"stairs", "  ", "climbing"},
		Diet:          []string{"shellfish", "shellfish"},
		Fears:         []string{"heights", "deep   water"},
	}
	want := []string{"climbing", "stairs", "shellfish", "deep water", "heights"}
	if got := ex.Terms(); !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
	if got := ex.Text(); got != "climbing, stairs, shellfish, deep water, heights" {
		t.Errorf("Text() = %q", got)
	}
}

func TestSemanticExclusions_BlankIsEmpty(t *testing.T) {
	ex := SemanticExclusions{Diet: []string{"", "   "}}
	if !ex.IsEmpty() {
		t.Error("blank-only exclusions should be empty")
	}
}

func TestHardConstraints_IsEmpty(t *testing.T) {
	var c HardConstraints
	if !c.IsEmpty() {
		t.Error("zero value should be empty")
	}
	c.Age = intPtr(30)
	if c.IsEmpty() {
		t.Error("age set should not be empty")
	}
}

func TestHardConstraints_ReferencePoint(t *testing.T) {
	target := geo.Point{Latitude: 45, Longitude: 12}
	lodging := geo.Point{Latitude: 41, Longitude: 12}

	c := HardConstraints{Target: &target}
	if got := c.ReferencePoint(); got == nil || *got != target {
		t.Errorf("expected target, got %v", got)
	}
	c.Accommodation = &lodging
	if got := c.ReferencePoint(); got == nil || *got != lodging {
		t.Errorf("expected accommodation to take precedence, got %v", got)
	}
	if (&HardConstraints{}).ReferencePoint() != nil {
		t.Error("expected nil reference point")
	}
}

func TestHardConstraints_Validate_OK(t *testing.T) {
	target := geo.Point{Latitude: 45.44, Longitude: 12.31}
	c := HardConstraints{
		Country:   strPtr("it"),
		Target:    &target,
		DateBegin: datePtr(2025, 6, 1),
		DateEnd:   datePtr(2025, 6, 1),
		Age:       intPtr(0),
		MaxPax:    intPtr(2),
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.NormalizedCountry() != "IT" {
		t.Errorf("NormalizedCountry = %q", c.NormalizedCountry())
	}
}

func TestHardConstraints_Validate_Errors(t *testing.T) {
	bad := geo.Point{Latitude: 95, Longitude: 0}
	badLon := geo.Point{Latitude: 0, Longitude: 200}
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		c     HardConstraints
		field string
	}{
		{"unknown country", HardConstraints{Country: strPtr("XX")}, "country"},
		{"blank country", HardConstraints{Country: strPtr("  ")}, "country"},
		{"negative age", HardConstraints{Age: intPtr(-1)}, "age"},
		{"age too high", HardConstraints{Age: intPtr(131)}, "age"},
		{"zero pax", HardConstraints{MaxPax: intPtr(0)}, "max_pax"},
		{"bad latitude", HardConstraints{Target: &bad}, "target_location"},
		{"bad longitude", HardConstraints{Accommodation: &badLon}, "accommodation_location"},
		{"inverted window", HardConstraints{DateBegin: datePtr(2025, 6, 10), DateEnd: datePtr(2025, 6, 1)}, "date_window"},
		{"inverted interval", HardConstraints{Blocked: []timeframe.Interval{{Start: start, End: start.Add(-time.Hour)}}}, "blocked_intervals[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if !errors.Is(err, domain.ErrInvalidConstraints) {
				t.Fatalf("expected ErrInvalidConstraints, got %v", err)
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %T", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}
