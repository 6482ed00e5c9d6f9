package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a pushdown filter: every must condition holds, and when
// should is non-empty at least one of its conditions holds.
type Expression struct {
	must   []Condition
	should []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should}, nil
}

// Must returns the conjunctive conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the disjunctive group.
func (e Expression) Should() []Condition { return e.should }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0
}

// Condition is a single clause: a tag match, a numeric range or a geo radius.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
	radius    *Radius
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// NewRadius creates a condition matching geo points within km of (lat, lon).
func NewRadius(key string, lat, lon, km float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if km <= 0 {
		return Condition{}, fmt.Errorf("radius must be positive for key %q", key)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Condition{}, fmt.Errorf("center out of range for key %q", key)
	}
	return Condition{key: key, radius: &Radius{lat: lat, lon: lon, km: km}}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// Radius returns the geo radius expression.
func (c Condition) Radius() *Radius { return c.radius }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// IsRadius reports whether this is a geo radius condition.
func (c Condition) IsRadius() bool { return c.radius != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Radius is a circle on the globe, in degrees and kilometers.
type Radius struct {
	lat, lon, km float64
}

// Lat returns the center latitude.
func (r Radius) Lat() float64 { return r.lat }

// Lon returns the center longitude.
func (r Radius) Lon() float64 { return r.lon }

// Km returns the radius in kilometers.
func (r Radius) Km() float64 { return r.km }
