// Package charts draws the side-by-side bar charts of a complete comparison.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/humidity-comfort/internal/compare"
	"github.com/i474232898/humidity-comfort/internal/logger"
)

// Metric selects one of the comparison charts.
type Metric string

const (
	MetricComfort     Metric = "comfort"
	MetricTemperature Metric = "temperature"
	MetricDewPoint    Metric = "dewpoint"
	MetricHumidity    Metric = "humidity"
)

// Metrics lists every chart in display order.
var Metrics = []Metric{MetricComfort, MetricTemperature, MetricDewPoint, MetricHumidity}

var (
	ErrUnknownMetric = errors.New("unknown chart metric")
	ErrIncomplete    = errors.New("both slots must be populated to chart a comparison")
)

const (
	dewPointColor = "36A2EB"
	humidityColor = "4BC0C0"
)

type spec struct {
	title    string
	min, max float64
	value    func(*compare.CityResult) float64
	label    func(float64) string
	// fixed is used instead of the comfort band color when set.
	fixed string
}

var specs = map[Metric]spec{
	MetricComfort: {
		title: "Comfort index",
		min:   0, max: 100,
		value: func(r *compare.CityResult) float64 { return float64(r.Comfort.Index) },
		label: func(v float64) string { return fmt.Sprintf("%d", int(math.Round(v))) },
	},
	MetricTemperature: {
		title: "Temperature",
		min:   -20, max: 60,
		value: func(r *compare.CityResult) float64 { return r.TemperatureC },
		label: func(v float64) string { return fmt.Sprintf("%.1f°C", v) },
	},
	MetricDewPoint: {
		title: "Dew point",
		min:   -20, max: 60,
		value: func(r *compare.CityResult) float64 { return r.DewPointC },
		label: func(v float64) string { return fmt.Sprintf("%.1f°C", v) },
		fixed: dewPointColor,
	},
	MetricHumidity: {
		title: "Relative humidity",
		min:   0, max: 100,
		value: func(r *compare.CityResult) float64 { return r.HumidityPct },
		label: func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		fixed: humidityColor,
	},
}

// ParseMetric converts a wire value into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(s))
	if _, ok := specs[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// RenderPNG draws one metric of a complete comparison.
func RenderPNG(m Metric, state compare.PairState) ([]byte, error) {
	sp, ok := specs[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
	}
	if !state.Complete() {
		return nil, ErrIncomplete
	}

	bars := make([]chart.Value, 0, 2)
	for _, r := range []*compare.CityResult{state.City1, state.City2} {
		v := sp.value(r)
		color := r.Comfort.Color
		if sp.fixed != "" {
			color = sp.fixed
		}
		c := drawing.ColorFromHex(strings.TrimPrefix(color, "#"))
		bars = append(bars, chart.Value{
			// Out-of-range values are pinned to the axis.
			Value: math.Max(sp.min, math.Min(sp.max, v)),
			Label: fmt.Sprintf("%s (%s)", r.City, sp.label(v)),
			Style: chart.Style{
				FillColor:   c,
				StrokeColor: c,
				StrokeWidth: 1,
			},
		})
	}

	bc := chart.BarChart{
		Title:        sp.title,
		Width:        480,
		Height:       320,
		BarWidth:     90,
		UseBaseValue: true,
		BaseValue:    0,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: sp.min, Max: sp.max},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", m, err)
	}
	return buf.Bytes(), nil
}

// Renderer keeps the latest charts of one comparison. It implements
// compare.Renderer.
type Renderer struct {
	mu      sync.RWMutex
	version uint64
	images  map[Metric][]byte
}

func NewRenderer() *Renderer {
	return &Renderer{images: make(map[Metric][]byte)}
}

// Render redraws all charts when both slots are populated and drops them
// otherwise. Notifications older than the last one seen are ignored.
func (r *Renderer) Render(state compare.PairState) {
	images := make(map[Metric][]byte, len(Metrics))
	if state.Complete() {
		for _, m := range Metrics {
			img, err := RenderPNG(m, state)
			if err != nil {
				logger.WithFields(logrus.Fields{"metric": m}).WithError(err).Error("chart rendering failed")
				continue
			}
			images[m] = img
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state.Version < r.version {
		return
	}
	r.version = state.Version
	r.images = images
}

// ShowError leaves charts untouched; a failed slot keeps its last data.
func (r *Renderer) ShowError(slot compare.Slot, err error) {
	logger.WithFields(logrus.Fields{"slot": int(slot)}).WithError(err).Debug("chart data unchanged after fetch error")
}

// PNG returns the latest image for m.
func (r *Renderer) PNG(m Metric) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.images[m]
	return img, ok
}
