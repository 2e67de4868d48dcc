package compare

import (
	"errors"

	"github.com/i474232898/humidity-comfort/internal/comfort"
	"github.com/i474232898/humidity-comfort/internal/timeopt"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

// SlotView is the display state of one slot.
type SlotView struct {
	Slot      Slot        `json:"slot"`
	CityID    string      `json:"cityId,omitempty"`
	Pending   bool        `json:"pending"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"errorKind,omitempty"`
	Result    *CityResult `json:"result,omitempty"`
}

// Snapshot is everything a client needs to draw the comparison.
type Snapshot struct {
	ActiveOption timeopt.ID       `json:"activeOption"`
	TimeOptions  []timeopt.Option `json:"timeOptions"`
	Slots        []SlotView       `json:"slots"`
	Complete     bool             `json:"complete"`
	Version      uint64           `json:"version"`
}

// Snapshot returns a consistent copy of the controller's display state.
// TimeOptions lists only the options that can be selected.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state.clone()
	snap := Snapshot{
		ActiveOption: c.active,
		TimeOptions:  timeopt.Selectable(c.optionsLocked()),
		Complete:     state.Complete(),
		Version:      state.Version,
	}

	for idx := range c.slots {
		s := c.slots[idx]
		slot := Slot(idx + 1)
		view := SlotView{
			Slot:    slot,
			CityID:  s.cityID,
			Pending: s.pending,
			Result:  state.Get(slot),
		}
		if s.err != nil {
			view.Error = s.err.Error()
			view.ErrorKind = ErrorKind(s.err)
		}
		snap.Slots = append(snap.Slots, view)
	}
	return snap
}

// ErrorKind names the failure class of err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, comfort.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, weather.ErrCityNotFound):
		return "city_not_found"
	case errors.Is(err, weather.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}
