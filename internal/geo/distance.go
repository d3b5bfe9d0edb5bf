package geo

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrInvalidCoordinate is returned for non-finite or out-of-range inputs.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const earthRadiusMiles = 3958.8

// DistanceMiles returns the great-circle (haversine) distance between two
// points, in miles.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, v := range []float64{lat1, lon1, lat2, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Wrap(ErrInvalidCoordinate, "non-finite input")
		}
	}
	if !validLat(lat1) || !validLat(lat2) {
		return 0, errors.Wrapf(ErrInvalidCoordinate, "latitude out of range: %f, %f", lat1, lat2)
	}
	if !validLon(lon1) || !validLon(lon2) {
		return 0, errors.Wrapf(ErrInvalidCoordinate, "longitude out of range: %f, %f", lon1, lon2)
	}

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c, nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func validLat(v float64) bool { return v >= -90 && v <= 90 }
func validLon(v float64) bool { return v >= -180 && v <= 180 }
