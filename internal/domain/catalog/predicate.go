package catalog

import (
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/search/filter"
)

// Clause is one exact-match condition evaluated in-process.
type Clause struct {
	Name  string
	Match func(it *Item) bool
}

// Predicate is a compiled conjunction of exact-match clauses.
//
// The Expression form is pushed down to stores that understand it; the clause
// form is evaluated in-process and is authoritative.
type Predicate struct {
	clauses    []Clause
	expression filter.Expression
}

// NewPredicate creates a Predicate from clauses and their pushdown expression.
func NewPredicate(clauses []Clause, expr filter.Expression) Predicate {
	return Predicate{clauses: clauses, expression: expr}
}

// SelectAll returns the predicate that matches every item.
func SelectAll() Predicate { return Predicate{} }

// Match reports whether the item satisfies every clause.
func (p Predicate) Match(it *Item) bool {
	for _, c := range p.clauses {
		if !c.Match(it) {
			return false
		}
	}
	return true
}

// Expression returns the pushdown filter.
func (p Predicate) Expression() filter.Expression { return p.expression }

// ClauseNames lists clause names in compile order.
func (p Predicate) ClauseNames() []string {
	names := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		names[i] = c.Name
	}
	return names
}

// IsSelectAll reports whether the predicate has no clauses.
func (p Predicate) IsSelectAll() bool { return len(p.clauses) == 0 }

// Filter returns the items matching the predicate, preserving order.
func (p Predicate) Filter(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for i := range items {
		if p.Match(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

// WithinRadius returns a copy whose pushdown also keeps only rows within km
// of center or rows without coordinates, which still need geocoding. Match
// is unchanged: distance is decided by the proximity phase.
func (p Predicate) WithinRadius(center geo.Point, km float64) Predicate {
	near, err := filter.NewRadius(FieldGeo, center.Latitude, center.Longitude, km)
	if err != nil {
		return p
	}
	unlocated, _ := filter.NewMatch(FieldHasCoords, "0")
	expr, err := filter.NewExpression(p.expression.Must(), []filter.Condition{near, unlocated})
	if err != nil {
		return p
	}
	p.expression = expr
	return p
}

// QueryResult is what a catalog store returns for one predicate.
type QueryResult struct {
	Items []Item
	// Total counts the rows the store matched. It exceeds len(Items) only
	// when Truncated is set.
	Total     int
	Truncated bool
}
