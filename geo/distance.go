package geo

import (
	"github.com/tidwall/geodesic"

	"propscout/models"
)

const metersPerMile = 1609.344

// DistanceMiles returns the WGS-84 geodesic distance between a and b.
func DistanceMiles(a, b models.Coordinates) float64 {
	var meters float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &meters, nil, nil)
	return meters / metersPerMile
}
