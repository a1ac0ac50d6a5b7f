package models

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

const (
	// PlaceholderTitle is the title given to programs that have not been edited yet.
	PlaceholderTitle = "New Event"
	// DefaultStartTime is used when a program or draft carries no start time.
	DefaultStartTime = "09:00"
	// DateLayout is the calendar date format carried on the wire.
	DateLayout = "2006-01-02"
)

// Program is a timed, multi-session event schedule.
// Slot order is the schedule order and must be preserved end to end.
type Program struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	Date      string `json:"date"`              // YYYY-MM-DD, no time zone
	StartTime string `json:"startTime"`         // HH:MM, 24h local
	EndTime   string `json:"endTime,omitempty"` // HH:MM target finish
	Slots     []Slot `json:"slots"`
}

// NewProgram returns an empty placeholder program dated on the given day.
func NewProgram(date time.Time) Program {
	return Program{
		ID:        uuid.NewString(),
		Title:     PlaceholderTitle,
		Date:      date.Format(DateLayout),
		StartTime: DefaultStartTime,
		Slots:     []Slot{},
	}
}

// IsPlaceholder reports whether p is an untouched placeholder that should not be persisted.
func (p Program) IsPlaceholder() bool {
	return len(p.Slots) == 0 && p.Title == PlaceholderTitle && p.Subtitle == ""
}

// Clone returns a deep copy of p so snapshots sent to peers never alias local state.
func (p Program) Clone() Program {
	out := p
	if p.Slots != nil {
		out.Slots = make([]Slot, len(p.Slots))
		for i, s := range p.Slots {
			out.Slots[i] = s.Clone()
		}
	}
	return out
}

// programFields has Program's fields without its methods, so cmp does not call Equal back.
type programFields Program

// Equal reports whether p and o carry the same content. Nil and empty slot lists are equal.
func (p Program) Equal(o Program) bool {
	return cmp.Equal(programFields(p), programFields(o), cmpopts.EquateEmpty())
}

// SlotIndex returns the index of the slot with the given id, or -1.
func (p Program) SlotIndex(slotID string) int {
	for i, s := range p.Slots {
		if s.ID == slotID {
			return i
		}
	}
	return -1
}
