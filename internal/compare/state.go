package compare

import (
	"errors"
	"fmt"

	"github.com/i474232898/humidity-comfort/internal/comfort"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// Slot is one of the two city positions being compared.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// ErrInvalidSlot is returned for slots other than 1 and 2.
var ErrInvalidSlot = errors.New("invalid slot")

// ParseSlot converts a wire value into a Slot.
func ParseSlot(n int) (Slot, error) {
	s := Slot(n)
	if _, err := s.index(); err != nil {
		return 0, err
	}
	return s, nil
}

func (s Slot) index() (int, error) {
	switch s {
	case Slot1, Slot2:
		return int(s) - 1, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlot, int(s))
	}
}

// CityResult is an observation with its derived comfort reading.
type CityResult struct {
	weather.Observation
	Comfort comfort.Result `json:"comfort"`
}

// PairState holds the latest result of each slot. Version increases with
// every change so collaborators can drop out-of-order notifications.
type PairState struct {
	City1   *CityResult `json:"city1"`
	City2   *CityResult `json:"city2"`
	Version uint64      `json:"version"`
}

// Get returns the result stored in slot, or nil.
func (p PairState) Get(slot Slot) *CityResult {
	switch slot {
	case Slot1:
		return p.City1
	case Slot2:
		return p.City2
	default:
		return nil
	}
}

// Complete reports whether both slots hold a result.
func (p PairState) Complete() bool {
	return p.City1 != nil && p.City2 != nil
}

func (p *PairState) set(slot Slot, r *CityResult) {
	if slot == Slot1 {
		p.City1 = r
	} else {
		p.City2 = r
	}
	p.Version++
}

// clone copies the results so the receiver can be mutated independently.
func (p PairState) clone() PairState {
	out := PairState{Version: p.Version}
	if p.City1 != nil {
		r := cloneResult(*p.City1)
		out.City1 = &r
	}
	if p.City2 != nil {
		r := cloneResult(*p.City2)
		out.City2 = &r
	}
	return out
}

func cloneResult(r CityResult) CityResult {
	if r.Providers != nil {
		r.Providers = append([]string(nil), r.Providers...)
	}
	return r
}

// Renderer is the display collaborator notified by the controller.
// Calls can arrive from several goroutines.
type Renderer interface {
	Render(state PairState)
	ShowError(slot Slot, err error)
}

type nopRenderer struct{}

func (nopRenderer) Render(PairState)      {}
func (nopRenderer) ShowError(Slot, error) {}
