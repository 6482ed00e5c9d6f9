package screening

import (
	"fmt"

	"github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/constraints"
	"github.com/kailas-cloud/screener/internal/domain/search/filter"
)

// Compile turns hard constraints into an exact-match predicate.
//
// Absent fields contribute no clause. Items missing an attribute pass the
// clause for that attribute, except country, which requires equality.
// Malformed constraints are returned as *domain.ConfigError.
func Compile(c *constraints.HardConstraints) (catalog.Predicate, error) {
	if err := c.Validate(); err != nil {
		return catalog.Predicate{}, fmt.Errorf("compile: %w", err)
	}

	var (
		clauses []catalog.Clause
		must    []filter.Condition
	)
	add := func(cl catalog.Clause, conds ...filter.Condition) {
		clauses = append(clauses, cl)
		must = append(must, conds...)
	}

	if cc := c.NormalizedCountry(); cc != "" {
		add(countryClause(cc), mustMatch(catalog.FieldCountry, cc))
	}

	if c.DateBegin != nil || c.DateEnd != nil {
		begin, end := c.DateBegin, c.DateEnd
		var conds []filter.Condition
		if end != nil {
			conds = append(conds, atMost(catalog.FieldStartDay, float64(end.Days())))
		}
		if begin != nil {
			conds = append(conds, atLeast(catalog.FieldEndDay, float64(begin.Days())))
		}
		add(catalog.Clause{
			Name:  "date_window",
			Match: func(it *catalog.Item) bool { return it.Availability.OverlapsDates(begin, end) },
		}, conds...)
	}

	// Blocked intervals are NOT(a AND b) per interval, which the store's
	// conjunctive filter cannot express; they are evaluated in-process only.
	for i := range c.Blocked {
		iv := c.Blocked[i]
		add(catalog.Clause{
			Name:  fmt.Sprintf("blocked_interval[%d]", i),
			Match: func(it *catalog.Item) bool { return !it.Availability.Intersects(iv) },
		})
	}

	if c.Age != nil {
		age := *c.Age
		add(catalog.Clause{
			Name: "age",
			Match: func(it *catalog.Item) bool {
				return (it.MinAge == nil || *it.MinAge <= age) && (it.MaxAge == nil || age <= *it.MaxAge)
			},
		},
			atMost(catalog.FieldMinAge, float64(age)),
			atLeast(catalog.FieldMaxAge, float64(age)),
		)
	}

	if c.MaxPax != nil {
		pax := *c.MaxPax
		add(catalog.Clause{
			Name:  "max_pax",
			Match: func(it *catalog.Item) bool { return it.MaxPax == nil || *it.MaxPax >= pax },
		}, atLeast(catalog.FieldMaxPax, float64(pax)))
	}

	expr, err := filter.NewExpression(must, nil)
	if err != nil {
		// Too many conditions for pushdown; the in-process clauses still apply.
		expr = filter.Expression{}
	}
	return catalog.NewPredicate(clauses, expr), nil
}

// CountryOnly returns the safety-net predicate applied when no hard
// constraint was supplied but a default country is configured.
func CountryOnly(country string) catalog.Predicate {
	return catalog.NewPredicate(
		[]catalog.Clause{countryClause(country)},
		mustExpression(mustMatch(catalog.FieldCountry, country)),
	)
}

func countryClause(cc string) catalog.Clause {
	return catalog.Clause{
		Name:  "country",
		Match: func(it *catalog.Item) bool { return it.Country == cc },
	}
}

func mustExpression(conds ...filter.Condition) filter.Expression {
	expr, _ := filter.NewExpression(conds, nil)
	return expr
}

// mustMatch builds a tag condition from values already known to be non-empty.
func mustMatch(key, value string) filter.Condition {
	c, _ := filter.NewMatch(key, value)
	return c
}

func atLeast(key string, v float64) filter.Condition {
	r, _ := filter.NewRangeFilter(nil, &v, nil, nil)
	c, _ := filter.NewRange(key, r)
	return c
}

func atMost(key string, v float64) filter.Condition {
	r, _ := filter.NewRangeFilter(nil, nil, nil, &v)
	c, _ := filter.NewRange(key, r)
	return c
}
