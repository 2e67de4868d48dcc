// Package timeopt decides which reference instants a city comparison can be
// requested for.
package timeopt

import (
	"errors"
	"fmt"
	"time"
)

// ID identifies a reference instant.
type ID string

const (
	Now           ID = "now"
	YesterdayNoon ID = "yesterday_noon"
	TodayNoon     ID = "today_noon"
)

// ErrUnknownOption is returned by Parse for unrecognized ids.
var ErrUnknownOption = errors.New("unknown time option")

// order is the fixed presentation order of options.
var order = []struct {
	id   ID
	name string
}{
	{Now, "Current Time"},
	{YesterdayNoon, "Yesterday at Noon"},
	{TodayNoon, "Today at Noon"},
}

// Option is a selectable reference instant and whether it is currently available.
type Option struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Parse converts a wire value into an ID.
func Parse(s string) (ID, error) {
	for _, o := range order {
		if string(o.id) == s {
			return o.id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOption, s)
}

// LocalNow returns the wall clock of a city at the given UTC offset. The
// result carries a fixed zone so its calendar fields are the city's.
func LocalNow(offsetHours int, nowUTC time.Time) time.Time {
	zone := time.FixedZone(zoneName(offsetHours), offsetHours*3600)
	return nowUTC.In(zone)
}

// Resolve computes all options for a city. Disabled options are kept so
// Reconcile can combine them; use Selectable for presentation.
func Resolve(offsetHours int, nowUTC time.Time) []Option {
	local := LocalNow(offsetHours, nowUTC)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, local.Location())

	opts := make([]Option, 0, len(order))
	for _, o := range order {
		enabled := true
		if o.id == TodayNoon {
			enabled = local.After(noon)
		}
		opts = append(opts, Option{ID: o.id, Name: o.name, Enabled: enabled})
	}
	return opts
}

// Reconcile combines the options of two cities: an option is enabled only if
// it is enabled for both. Options missing from either side are disabled.
func Reconcile(a, b []Option) []Option {
	out := make([]Option, 0, len(order))
	for _, o := range order {
		ea, oka := lookup(a, o.id)
		eb, okb := lookup(b, o.id)
		out = append(out, Option{
			ID:      o.id,
			Name:    o.name,
			Enabled: oka && okb && ea && eb,
		})
	}
	return out
}

// Selectable filters out disabled options, preserving order.
func Selectable(opts []Option) []Option {
	out := make([]Option, 0, len(opts))
	for _, o := range opts {
		if o.Enabled {
			out = append(out, o)
		}
	}
	return out
}

// Fallback returns active if it is enabled in opts and Now otherwise.
func Fallback(active ID, opts []Option) ID {
	if enabled, ok := lookup(opts, active); ok && enabled {
		return active
	}
	return Now
}

// ReferenceInstant returns the UTC instant an option refers to for a city at
// the given offset.
func ReferenceInstant(id ID, offsetHours int, nowUTC time.Time) time.Time {
	local := LocalNow(offsetHours, nowUTC)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, local.Location())

	switch id {
	case TodayNoon:
		return noon.UTC()
	case YesterdayNoon:
		return noon.AddDate(0, 0, -1).UTC()
	default:
		return nowUTC.UTC()
	}
}

func lookup(opts []Option, id ID) (enabled bool, found bool) {
	for _, o := range opts {
		if o.ID == id {
			return o.Enabled, true
		}
	}
	return false, false
}

func zoneName(offsetHours int) string {
	if offsetHours >= 0 {
		return fmt.Sprintf("UTC+%d", offsetHours)
	}
	return fmt.Sprintf("UTC%d", offsetHours)
}
