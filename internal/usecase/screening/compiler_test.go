package screening

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/constraints"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

func date(m time.Month, d int) timeframe.Date { return timeframe.NewDate(2025, m, d) }

func datePtr(m time.Month, d int) *timeframe.Date {
	v := date(m, d)
	return &v
}

func TestCompile_EmptyIsSelectAll(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pred.IsSelectAll() {
		t.Errorf("expected select-all, got clauses %v", pred.ClauseNames())
	}
	if !pred.Expression().IsEmpty() {
		t.Error("expected empty pushdown expression")
	}
}

func TestCompile_Country(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{Country: strPtr("it")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it := item("p1", "o1")
	fr := item("p2", "o1")
	fr.Country = "FR"
	blank := item("p3", "o1")
	blank.Country = ""

	if !pred.Match(&it) {
		t.Error("IT item should match")
	}
	if pred.Match(&fr) {
		t.Error("FR item should not match")
	}
	if pred.Match(&blank) {
		t.Error("item without country should not match a country constraint")
	}

	must := pred.Expression().Must()
	if len(must) != 1 || must[0].Key() != catalog.FieldCountry || must[0].Match() != "IT" {
		t.Errorf("unexpected pushdown: %+v", must)
	}
}

func TestCompile_DateWindow(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{
		DateBegin: datePtr(6, 15),
		DateEnd:   datePtr(6, 25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		it   catalog.Item
		want bool
	}{
		{"overlapping", withWindow(item("a", "o"), date(6, 10), date(6, 20)), true},
		{"touching begin", withWindow(item("b", "o"), date(6, 1), date(6, 15)), true},
		{"touching end", withWindow(item("c", "o"), date(6, 25), date(6, 30)), true},
		{"before", withWindow(item("d", "o"), date(6, 1), date(6, 14)), false},
		{"after", withWindow(item("e", "o"), date(6, 26), date(7, 5)), false},
		{"dateless", item("f", "o"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pred.Match(&tt.it); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}

	must := pred.Expression().Must()
	if len(must) != 2 {
		t.Fatalf("expected 2 pushdown conditions, got %d", len(must))
	}
	if must[0].Key() != catalog.FieldStartDay || must[0].Range().LTE() == nil ||
		*must[0].Range().LTE() != float64(date(6, 25).Days()) {
		t.Errorf("unexpected start_day condition: %+v", must[0])
	}
	if must[1].Key() != catalog.FieldEndDay || must[1].Range().GTE() == nil ||
		*must[1].Range().GTE() != float64(date(6, 15).Days()) {
		t.Errorf("unexpected end_day condition: %+v", must[1])
	}
}

func TestCompile_BlockedIntervals(t *testing.T) {
	blocked, err := timeframe.NewInterval(
		time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("interval: %v", err)
	}
	pred, err := Compile(&constraints.HardConstraints{Blocked: []timeframe.Interval{blocked}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	june := withWindow(item("june", "o"), date(6, 1), date(6, 30))
	july := withWindow(item("july", "o"), date(7, 1), date(7, 31))
	dateless := item("any", "o")

	if pred.Match(&june) {
		t.Error("item available during the blocked interval should be excluded")
	}
	if !pred.Match(&july) {
		t.Error("item outside the blocked interval should pass")
	}
	if !pred.Match(&dateless) {
		t.Error("dateless item should pass")
	}
	if !pred.Expression().IsEmpty() {
		t.Error("blocked intervals are not pushed down")
	}
}

func TestCompile_Age(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{Age: intPtr(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kids := item("kids", "o")
	kids.MinAge, kids.MaxAge = intPtr(6), intPtr(12)
	adults := item("adults", "o")
	adults.MinAge = intPtr(18)
	open := item("open", "o")
	upTo8 := item("small", "o")
	upTo8.MaxAge = intPtr(8)

	if !pred.Match(&kids) {
		t.Error("age 10 fits [6, 12]")
	}
	if pred.Match(&adults) {
		t.Error("age 10 is below min 18")
	}
	if !pred.Match(&open) {
		t.Error("item without age limits should pass")
	}
	if pred.Match(&upTo8) {
		t.Error("age 10 is above max 8")
	}
}

func TestCompile_MaxPax(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{MaxPax: intPtr(4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	small := item("small", "o")
	small.MaxPax = intPtr(2)
	big := item("big", "o")
	big.MaxPax = intPtr(4)
	unknown := item("unknown", "o")

	if pred.Match(&small) {
		t.Error("max_pax 2 cannot host 4")
	}
	if !pred.Match(&big) {
		t.Error("max_pax 4 can host 4")
	}
	if !pred.Match(&unknown) {
		t.Error("item without max_pax should pass")
	}
}

func TestCompile_Conjunction(t *testing.T) {
	pred, err := Compile(&constraints.HardConstraints{
		Country: strPtr("IT"),
		Age:     intPtr(30),
		MaxPax:  intPtr(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := pred.ClauseNames()
	if len(names) != 3 || names[0] != "country" || names[1] != "age" || names[2] != "max_pax" {
		t.Errorf("unexpected clauses: %v", names)
	}

	fr := item("fr", "o")
	fr.Country = "FR"
	if pred.Match(&fr) {
		t.Error("failing one clause must fail the predicate")
	}
}

func TestCompile_InvertedWindowIsConfigError(t *testing.T) {
	_, err := Compile(&constraints.HardConstraints{
		DateBegin: datePtr(6, 25),
		DateEnd:   datePtr(6, 15),
	})
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Field != "date_window" {
		t.Errorf("field = %q", ce.Field)
	}
}

func TestCountryOnly(t *testing.T) {
	pred := CountryOnly("IT")
	it := item("p", "o")
	fr := item("q", "o")
	fr.Country = "FR"
	if !pred.Match(&it) || pred.Match(&fr) {
		t.Error("country-only predicate should keep only IT")
	}
	if len(pred.Expression().Must()) != 1 {
		t.Error("expected one pushdown condition")
	}
}
