package catalog

import (
	"fmt"

	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

// Identity addresses one bookable (product, option, unit) triple.
type Identity struct {
	ProductID string `json:"product_id"`
	OptionID  string `json:"option_id"`
	UnitID    string `json:"unit_id"`
}

// String renders the identity as product/option/unit.
func (id Identity) String() string {
	return id.ProductID + "/" + id.OptionID + "/" + id.UnitID
}

// Less orders identities lexicographically by product, option, unit.
func (id Identity) Less(o Identity) bool {
	if id.ProductID != o.ProductID {
		return id.ProductID < o.ProductID
	}
	if id.OptionID != o.OptionID {
		return id.OptionID < o.OptionID
	}
	return id.UnitID < o.UnitID
}

// Validate checks that all identity components are present.
func (id Identity) Validate() error {
	switch {
	case id.ProductID == "":
		return fmt.Errorf("product_id is required")
	case id.OptionID == "":
		return fmt.Errorf("option_id is required")
	case id.UnitID == "":
		return fmt.Errorf("unit_id is required")
	}
	return nil
}

// Item is a flattened catalog row. Optional attributes are nil when the
// supplier did not provide them.
type Item struct {
	Identity

	Title       string
	Country     string // ISO-2, upper case
	Location    string // free text used when Coordinates is nil
	Coordinates *geo.Point

	Availability timeframe.Window

	MinAge *int
	MaxAge *int
	MaxPax *int

	Price    int64 // minor currency units; 0 means free or unknown
	Currency string

	Embedding []float32
}

// HasCoordinates reports whether the item carries its own coordinates.
func (it *Item) HasCoordinates() bool { return it.Coordinates != nil }
