package geocoding

import (
	"context"

	"github.com/UnknownOlympus/skolmap/internal/models"
)

// Provider is an interface that defines a method for geocoding a free-form
// query. The Geocode method takes a context and a query string as input,
// and returns the corresponding coordinates and an error if any occurs.
type Provider interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}
