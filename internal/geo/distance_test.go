package geo

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMiles(t *testing.T) {
	t.Run("zero distance", func(t *testing.T) {
		d, err := DistanceMiles(40.7128, -74.0060, 40.7128, -74.0060)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d)
	})

	t.Run("known city pair", func(t *testing.T) {
		// New York to Los Angeles, great-circle ~2446 miles.
		d, err := DistanceMiles(40.7128, -74.0060, 34.0522, -118.2437)
		require.NoError(t, err)
		assert.InDelta(t, 2446, d, 10)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		d, err := DistanceMiles(0, 0, 1, 0)
		require.NoError(t, err)
		assert.InDelta(t, 69.09, d, 0.1)
	})

	t.Run("symmetric", func(t *testing.T) {
		a, err := DistanceMiles(33.45, -112.07, 32.72, -117.16)
		require.NoError(t, err)
		b, err := DistanceMiles(32.72, -117.16, 33.45, -112.07)
		require.NoError(t, err)
		assert.InDelta(t, a, b, 1e-9)
	})
}

func TestDistanceMilesInvalidInputs(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"NaN latitude", math.NaN(), 0, 0, 0},
		{"Inf longitude", 0, math.Inf(1), 0, 0},
		{"latitude above range", 95, 0, 0, 0},
		{"latitude below range", 0, 0, -91, 0},
		{"longitude above range", 0, 181, 0, 0},
		{"longitude below range", 0, 0, 0, -180.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DistanceMiles(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCoordinate))
		})
	}
}
