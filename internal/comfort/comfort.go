// Package comfort derives a humidity comfort index from dew point.
package comfort

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for dew points that are NaN or infinite.
var ErrInvalidInput = errors.New("invalid input")

// maxDewPointC is the dew point that maps to an index of 100.
const maxDewPointC = 38.0

// Band is a labeled, colored range of dew point values.
// UpperBoundC is inclusive.
type Band struct {
	UpperBoundC float64 `json:"upperBoundC"`
	Label       string  `json:"label"`
	Color       string  `json:"color"`
}

// Checked in order; the first band whose upper bound is >= the dew point wins.
var bands = []Band{
	{UpperBoundC: 10, Label: "dry", Color: "#5ECBFC"},
	{UpperBoundC: 15, Label: "very comfortable", Color: "#62FF3B"},
	{UpperBoundC: 18, Label: "comfortable", Color: "#CBFF73"},
	{UpperBoundC: 20, Label: "alright", Color: "#FFFF9E"},
	{UpperBoundC: 24, Label: "uncomfortable", Color: "#FFD239"},
	{UpperBoundC: 26, Label: "very uncomfortable", Color: "#FF981E"},
	{UpperBoundC: math.Inf(1), Label: "severely uncomfortable", Color: "#FF6610"},
}

// Result is the comfort reading for a single dew point.
type Result struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Bands returns a copy of the ordered band table.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}

// Compute maps a dew point in Celsius to a comfort index in [0, 100]
// together with the label and color of its band.
func Compute(dewPointC float64) (Result, error) {
	if math.IsNaN(dewPointC) || math.IsInf(dewPointC, 0) {
		return Result{}, fmt.Errorf("%w: dew point %v is not finite", ErrInvalidInput, dewPointC)
	}

	// Ceiling first, then clamp.
	normalized := math.Ceil(dewPointC / maxDewPointC * 100)
	index := int(math.Max(0, math.Min(100, normalized)))

	b := bandFor(dewPointC)
	return Result{
		Index: index,
		Label: b.Label,
		Color: b.Color,
	}, nil
}

func bandFor(dewPointC float64) Band {
	for _, b := range bands {
		if dewPointC <= b.UpperBoundC {
			return b
		}
	}
	// Unreachable for finite input: the last band is unbounded.
	return bands[len(bands)-1]
}
