package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

// Record is one flattened product/option/unit row as exported by the catalog
// ingestor. Embeddings are produced upstream and carried in Vector.
type Record struct {
	ProductID   string    `json:"product_id"`
	OptionID    string    `json:"option_id"`
	UnitID      string    `json:"unit_id"`
	Title       string    `json:"title,omitempty"`
	Country     string    `json:"country,omitempty"`
	Location    string    `json:"location,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	MinAge      *int      `json:"min_age,omitempty"`
	MaxAge      *int      `json:"max_age,omitempty"`
	MaxPax      *int      `json:"max_pax,omitempty"`
	PriceAmount *int64    `json:"price_amount,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Vector      []float32 `json:"vector,omitempty"`
}

// ToItem validates the record and converts it into a catalog item.
// Out-of-range coordinates are dropped so the item falls back to geocoding.
func (r *Record) ToItem() (domcat.Item, error) {
	it := domcat.Item{
		Identity: domcat.Identity{ProductID: r.ProductID, OptionID: r.OptionID, UnitID: r.UnitID},
		Title:    r.Title,
		Country:  strings.ToUpper(strings.TrimSpace(r.Country)),
		Location: strings.TrimSpace(r.Location),
		MinAge:   r.MinAge,
		MaxAge:   r.MaxAge,
		MaxPax:   r.MaxPax,
		Currency: r.Currency,
	}
	if err := it.Identity.Validate(); err != nil {
		return domcat.Item{}, err
	}

	if r.Latitude != nil && r.Longitude != nil {
		if p, ok := geo.NewPoint(*r.Latitude, *r.Longitude); ok {
			it.Coordinates = &p
		}
	}

	var err error
	if it.Availability.Start, err = parseOptionalDate(r.StartDate); err != nil {
		return domcat.Item{}, fmt.Errorf("%s: start_date: %w", it.Identity, err)
	}
	if it.Availability.End, err = parseOptionalDate(r.EndDate); err != nil {
		return domcat.Item{}, fmt.Errorf("%s: end_date: %w", it.Identity, err)
	}

	if r.PriceAmount != nil {
		it.Price = *r.PriceAmount
	}
	it.Embedding = r.Vector
	return it, nil
}

// RecordFromItem is the inverse of Record.ToItem.
func RecordFromItem(it *domcat.Item) Record {
	r := Record{
		ProductID: it.ProductID,
		OptionID:  it.OptionID,
		UnitID:    it.UnitID,
		Title:     it.Title,
		Country:   it.Country,
		Location:  it.Location,
		MinAge:    it.MinAge,
		MaxAge:    it.MaxAge,
		MaxPax:    it.MaxPax,
		Currency:  it.Currency,
		Vector:    it.Embedding,
	}
	if it.Coordinates != nil {
		lat, lon := it.Coordinates.Latitude, it.Coordinates.Longitude
		r.Latitude, r.Longitude = &lat, &lon
	}
	if it.Availability.Start != nil {
		r.StartDate = it.Availability.Start.String()
	}
	if it.Availability.End != nil {
		r.EndDate = it.Availability.End.String()
	}
	if it.Price != 0 {
		p := it.Price
		r.PriceAmount = &p
	}
	return r
}

// ReadItems decodes a stream of JSON records (one object per line, or a
// plain concatenation of objects).
func ReadItems(rd io.Reader) ([]domcat.Item, error) {
	dec := json.NewDecoder(rd)
	var items []domcat.Item
	for n := 1; ; n++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return items, nil
			}
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		it, err := rec.ToItem()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		items = append(items, it)
	}
}

// KeepDimensions returns the items whose embedding has exactly dims
// components, logging each dropped row. Without a usable vector the semantic
// exclusion phase could never reject an item. dims <= 0 keeps everything.
func KeepDimensions(items []domcat.Item, dims int, logger *zap.Logger) (kept []domcat.Item, skipped int) {
	if dims <= 0 {
		return items, 0
	}
	kept = make([]domcat.Item, 0, len(items))
	for i := range items {
		if n := len(items[i].Embedding); n != dims {
			logger.Warn("Skipping row with unusable embedding",
				zap.String("item", items[i].Identity.String()),
				zap.Int("expected", dims),
				zap.Int("got", n),
			)
			skipped++
			continue
		}
		kept = append(kept, items[i])
	}
	return kept, skipped
}

func parseOptionalDate(s string) (*timeframe.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// Supplier dates sometimes carry a time part.
	if len(s) > len(timeframe.DateLayout) {
		s = s[:len(timeframe.DateLayout)]
	}
	d, err := timeframe.ParseDate(s)
	if err != nil {
		return nil, err //nolint:wrapcheck // caller adds field context
	}
	return &d, nil
}
