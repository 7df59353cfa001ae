package models

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point.
	Longitude float64 // Longitude of the geographical point.
}

// SchoolRecord is a single row of the school register export: the unit code,
// display name, municipality and the average merit value of its graduates.
type SchoolRecord struct {
	ID           string  // ID is the unique school unit code, used as the address cache key.
	Name         string  // Name is the display name of the school.
	Municipality string  // Municipality the school belongs to.
	Merit        float64 // Merit is the average merit value.
}

// EnrichedRecord is a SchoolRecord extended with the resolved street address
// and geographic coordinates. Records that could not be geocoded never become
// EnrichedRecords.
type EnrichedRecord struct {
	SchoolRecord

	Address   string // Address is the resolved street address, or the municipality when none was found.
	Latitude  float64
	Longitude float64
}
