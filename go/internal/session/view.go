package session

import (
	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// View is a read-only projection of a session for rendering.
type View struct {
	Program        models.Program
	Status         Status
	ReadOnly       bool
	CurrentIndex   int
	SecondsElapsed int
	Remaining      int
	Progress       float64
	Current        *models.Slot
	Next           *models.Slot
}

// Countdown formats the remaining time as MM:SS.
func (v View) Countdown() string {
	return clock.FormatCountdown(v.Remaining)
}

// Overtime reports whether the current slot has run past its planned duration.
func (v View) Overtime() bool {
	return v.Current != nil && v.SecondsElapsed > v.Current.DurationMinutes*60
}

// View snapshots the session.
func (s *Session) View() View {
	v := View{
		Program:        s.program.Clone(),
		Status:         s.Status(),
		ReadOnly:       s.opts.ReadOnly,
		CurrentIndex:   s.index,
		SecondsElapsed: s.SecondsElapsed(),
	}
	slots := v.Program.Slots
	if s.index >= 0 && s.index < len(slots) {
		cur := slots[s.index]
		v.Current = &cur
		v.Remaining = clock.Remaining(cur.DurationMinutes, v.SecondsElapsed)
		v.Progress = clock.ProgressFraction(cur.DurationMinutes, v.SecondsElapsed)
		if s.index+1 < len(slots) {
			next := slots[s.index+1]
			v.Next = &next
		}
	}
	return v
}
