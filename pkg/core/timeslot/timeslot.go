// Package timeslot implements the minute/slot arithmetic of §4.1: all time
// is minutes since midnight, and a slot is a 15-minute interval over the
// operating window.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// Grid carries the operational constants needed to convert between minutes
// and slot indices. It is a thin value type, cloned freely.
type Grid struct {
	OPStartMin  int
	OPEndMin    int
	SlotMinutes int
}

// NewGrid builds a Grid from the engine's operational constants.
func NewGrid(c model.Constants) Grid {
	return Grid{OPStartMin: c.OPStartMin, OPEndMin: c.OPEndMin, SlotMinutes: c.SlotMinutes}
}

// NumSlots is (OPEndMin - OPStartMin) / SlotMinutes.
func (g Grid) NumSlots() int {
	return (g.OPEndMin - g.OPStartMin) / g.SlotMinutes
}

// SlotOf maps an absolute minute to its slot index. The operating window is
// inclusive of OPStartMin and exclusive of OPEndMin; minutes outside the
// window are clamped to the nearest edge so arithmetic never panics.
func (g Grid) SlotOf(minute int) int {
	s := (minute - g.OPStartMin) / g.SlotMinutes
	if s < 0 {
		return 0
	}
	if max := g.NumSlots(); s > max {
		return max
	}
	return s
}

// MinuteOf maps a slot index back to its absolute minute.
func (g Grid) MinuteOf(slot int) int {
	return g.OPStartMin + g.SlotMinutes*slot
}

// OnGrid reports whether minute falls exactly on a slot boundary.
func (g Grid) OnGrid(minute int) bool {
	return (minute-g.OPStartMin)%g.SlotMinutes == 0
}

// InWindow reports whether [start, end) lies within [OPStartMin, OPEndMin].
func (g Grid) InWindow(start, end int) bool {
	return start >= g.OPStartMin && end <= g.OPEndMin
}

// ParseHHMM converts a bijective "HH:MM" grid string to minutes since
// midnight.
func ParseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("timeslot: malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("timeslot: malformed hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("timeslot: malformed minute in %q: %w", s, err)
	}
	return h*60 + m, nil
}

// FormatHHMM converts minutes since midnight back to "HH:MM".
func FormatHHMM(minute int) string {
	h := minute / 60
	m := minute % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
