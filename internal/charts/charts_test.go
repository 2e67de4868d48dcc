package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/humidity-comfort/internal/comfort"
	"github.com/i474232898/humidity-comfort/internal/compare"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

var pngMagic = []byte("\x89PNG")

func result(t *testing.T, city string, temp, dew, humidity float64) *compare.CityResult {
	t.Helper()
	c, err := comfort.Compute(dew)
	require.NoError(t, err)
	return &compare.CityResult{
		Observation: weather.Observation{City: city, TemperatureC: temp, DewPointC: dew, HumidityPct: humidity},
		Comfort:     c,
	}
}

func TestRenderPNG(t *testing.T) {
	state := compare.PairState{
		City1:   result(t, "London", 18, 9, 60),
		City2:   result(t, "Singapore", 31, 25, 80),
		Version: 2,
	}

	for _, m := range Metrics {
		t.Run(string(m), func(t *testing.T) {
			img, err := RenderPNG(m, state)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}
}

func TestRenderPNGNegativeValues(t *testing.T) {
	state := compare.PairState{
		City1: result(t, "Munich", -8, -15, 70),
		City2: result(t, "Riyadh", 41, 2, 12),
	}
	img, err := RenderPNG(MetricDewPoint, state)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRenderPNGRequiresBothSlots(t *testing.T) {
	_, err := RenderPNG(MetricComfort, compare.PairState{City1: result(t, "London", 18, 9, 60)})
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = RenderPNG(Metric("wind"), compare.PairState{})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRendererTracksLatestState(t *testing.T) {
	r := NewRenderer()
	full := compare.PairState{
		City1:   result(t, "London", 18, 9, 60),
		City2:   result(t, "Tokyo", 27, 21, 75),
		Version: 3,
	}

	r.Render(full)
	_, ok := r.PNG(MetricHumidity)
	assert.True(t, ok)

	// An older notification arriving late is ignored.
	r.Render(compare.PairState{City1: full.City1, Version: 1})
	_, ok = r.PNG(MetricHumidity)
	assert.True(t, ok)

	r.Render(compare.PairState{City1: full.City1, Version: 4})
	_, ok = r.PNG(MetricHumidity)
	assert.False(t, ok)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("DewPoint")
	require.NoError(t, err)
	assert.Equal(t, MetricDewPoint, m)

	_, err = ParseMetric("pressure")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
