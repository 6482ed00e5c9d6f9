package catalog

// Filterable field names shared by the compiler and catalog stores.
const (
	FieldProductID = "product_id"
	FieldOptionID  = "option_id"
	FieldUnitID    = "unit_id"
	FieldCountry   = "country"
	FieldStartDay  = "start_day"
	FieldEndDay    = "end_day"
	FieldMinAge    = "min_age"
	FieldMaxAge    = "max_age"
	FieldMaxPax    = "max_pax"
	FieldGeo       = "geo"        // "lon,lat", only for items with coordinates
	FieldHasCoords = "has_coords" // "1" or "0"
)

// Sentinels stored for missing numeric attributes so that range filters
// treat an absent value as "no restriction".
const (
	OpenStartDay int64 = -999999
	OpenEndDay   int64 = 999999
	OpenMinAge         = -1
	OpenMaxAge         = 1000
	OpenMaxPax         = 1000000
)
