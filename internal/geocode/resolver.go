// Package geocode turns free-text place names into coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agrocast/weather-insight-service/internal/gateway"
	"github.com/agrocast/weather-insight-service/internal/models"
)

// ErrPlaceNotFound means the geocoding lookup returned zero matches. It is
// distinct from transport failures so callers can show "city not found"
// instead of a generic upstream error.
var ErrPlaceNotFound = errors.New("place not found")

type geoMatch struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Resolver resolves free-text queries through the geocoding endpoint.
type Resolver struct {
	gateway *gateway.Gateway
}

func NewResolver(gw *gateway.Gateway) *Resolver {
	return &Resolver{gateway: gw}
}

// Resolve returns the coordinates and canonical name of the best (first)
// match for query. No disambiguation: limit=1 upstream, first entry wins.
func (r *Resolver) Resolve(ctx context.Context, query string) (models.GeoPoint, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.GeoPoint{}, "", fmt.Errorf("%w: empty query", ErrPlaceNotFound)
	}

	var matches []geoMatch
	if err := r.gateway.FetchJSON(ctx, gateway.EndpointGeocode, r.gateway.GeocodeURL(query), &matches); err != nil {
		return models.GeoPoint{}, "", fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(matches) == 0 {
		return models.GeoPoint{}, "", fmt.Errorf("%w: %q", ErrPlaceNotFound, query)
	}

	best := matches[0]
	return models.GeoPoint{Lat: best.Lat, Lon: best.Lon}, best.Name, nil
}
