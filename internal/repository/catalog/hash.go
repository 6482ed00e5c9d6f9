package catalog

import (
	"fmt"
	"strconv"

	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
	"github.com/kailas-cloud/screener/internal/domain/vector"
)

// Non-indexed hash fields.
const (
	fieldTitle     = "title"
	fieldLocation  = "location"
	fieldLatitude  = "lat"
	fieldLongitude = "lon"
	fieldPrice     = "price"
	fieldCurrency  = "currency"
	fieldVector    = "__vector"
)

// buildHashFields flattens an item into HSET fields. Missing numeric
// attributes are written as open sentinels so range pushdown treats them as
// unrestricted; the sentinels are decoded back to nil.
func buildHashFields(it *domcat.Item) map[string]string {
	m := map[string]string{
		domcat.FieldProductID: it.ProductID,
		domcat.FieldOptionID:  it.OptionID,
		domcat.FieldUnitID:    it.UnitID,
		domcat.FieldStartDay:  strconv.FormatInt(domcat.OpenStartDay, 10),
		domcat.FieldEndDay:    strconv.FormatInt(domcat.OpenEndDay, 10),
		domcat.FieldMinAge:    intOr(it.MinAge, domcat.OpenMinAge),
		domcat.FieldMaxAge:    intOr(it.MaxAge, domcat.OpenMaxAge),
		domcat.FieldMaxPax:    intOr(it.MaxPax, domcat.OpenMaxPax),
		domcat.FieldHasCoords: "0",
		fieldPrice:            strconv.FormatInt(it.Price, 10),
	}
	if it.Country != "" {
		m[domcat.FieldCountry] = it.Country
	}
	if it.Title != "" {
		m[fieldTitle] = it.Title
	}
	if it.Location != "" {
		m[fieldLocation] = it.Location
	}
	if it.Currency != "" {
		m[fieldCurrency] = it.Currency
	}
	if it.Coordinates != nil {
		m[fieldLatitude] = strconv.FormatFloat(it.Coordinates.Latitude, 'f', -1, 64)
		m[fieldLongitude] = strconv.FormatFloat(it.Coordinates.Longitude, 'f', -1, 64)
		m[domcat.FieldGeo] = m[fieldLongitude] + "," + m[fieldLatitude]
		m[domcat.FieldHasCoords] = "1"
	}
	if it.Availability.Start != nil {
		m[domcat.FieldStartDay] = strconv.FormatInt(it.Availability.Start.Days(), 10)
	}
	if it.Availability.End != nil {
		m[domcat.FieldEndDay] = strconv.FormatInt(it.Availability.End.Days(), 10)
	}
	if len(it.Embedding) > 0 {
		m[fieldVector] = string(vector.ToBytes(it.Embedding))
	}
	return m
}

// parseHashFields rebuilds an item from HGETALL/FT.SEARCH fields.
func parseHashFields(m map[string]string) (domcat.Item, error) {
	it := domcat.Item{
		Identity: domcat.Identity{
			ProductID: m[domcat.FieldProductID],
			OptionID:  m[domcat.FieldOptionID],
			UnitID:    m[domcat.FieldUnitID],
		},
		Title:    m[fieldTitle],
		Country:  m[domcat.FieldCountry],
		Location: m[fieldLocation],
		Currency: m[fieldCurrency],
	}
	if err := it.Identity.Validate(); err != nil {
		return domcat.Item{}, err
	}

	var err error
	if it.MinAge, err = parseIntField(m, domcat.FieldMinAge, domcat.OpenMinAge); err != nil {
		return domcat.Item{}, err
	}
	if it.MaxAge, err = parseIntField(m, domcat.FieldMaxAge, domcat.OpenMaxAge); err != nil {
		return domcat.Item{}, err
	}
	if it.MaxPax, err = parseIntField(m, domcat.FieldMaxPax, domcat.OpenMaxPax); err != nil {
		return domcat.Item{}, err
	}
	if it.Availability.Start, err = parseDayField(m, domcat.FieldStartDay, domcat.OpenStartDay); err != nil {
		return domcat.Item{}, err
	}
	if it.Availability.End, err = parseDayField(m, domcat.FieldEndDay, domcat.OpenEndDay); err != nil {
		return domcat.Item{}, err
	}

	if s := m[fieldPrice]; s != "" {
		if it.Price, err = strconv.ParseInt(s, 10, 64); err != nil {
			return domcat.Item{}, fmt.Errorf("parse %s: %w", fieldPrice, err)
		}
	}

	latStr, lonStr := m[fieldLatitude], m[fieldLongitude]
	if latStr != "" && lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat == nil && errLon == nil {
			if p, ok := geo.NewPoint(lat, lon); ok {
				it.Coordinates = &p
			}
		}
	}

	if raw, ok := m[fieldVector]; ok && raw != "" {
		v, ok := vector.FromBytes([]byte(raw))
		if !ok {
			return domcat.Item{}, fmt.Errorf("%s: malformed vector of %d bytes", it.Identity, len(raw))
		}
		it.Embedding = v
	}
	return it, nil
}

func intOr(v *int, open int) string {
	if v == nil {
		return strconv.Itoa(open)
	}
	return strconv.Itoa(*v)
}

func parseIntField(m map[string]string, name string, open int) (*int, error) {
	s, ok := m[name]
	if !ok || s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if n == open {
		return nil, nil
	}
	return &n, nil
}

func parseDayField(m map[string]string, name string, open int64) (*timeframe.Date, error) {
	s, ok := m[name]
	if !ok || s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if n == open {
		return nil, nil
	}
	d := timeframe.FromDays(n)
	return &d, nil
}
