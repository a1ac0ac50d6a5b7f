package models

import "strings"

// SlotType is an open tag. The presets are suggestions; any caller supplied value is valid.
type SlotType string

const (
	SlotTypeTalk    SlotType = "Talk"
	SlotTypeBreak   SlotType = "Break"
	SlotTypeKeynote SlotType = "Keynote"
	SlotTypePanel   SlotType = "Panel"
	SlotTypeWorship SlotType = "Worship"
	SlotTypeSermon  SlotType = "Sermon"
	SlotTypeMusic   SlotType = "Music"
)

// SlotPresets lists the suggested slot types in display order.
var SlotPresets = []SlotType{
	SlotTypeTalk,
	SlotTypeBreak,
	SlotTypeKeynote,
	SlotTypePanel,
	SlotTypeWorship,
	SlotTypeSermon,
	SlotTypeMusic,
}

// IsBreak reports whether the tag denotes a break, ignoring case.
func (t SlotType) IsBreak() bool {
	return strings.EqualFold(string(t), string(SlotTypeBreak))
}

// Slot is one session of a program.
type Slot struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Speaker         string   `json:"speaker"`
	DurationMinutes int      `json:"durationMinutes"`
	Type            SlotType `json:"type"`
	Details         string   `json:"details,omitempty"`
	ActualDuration  *int     `json:"actualDuration,omitempty"` // minutes, set once the slot completes
}

// Clone returns a copy of s that does not share the ActualDuration pointer.
func (s Slot) Clone() Slot {
	out := s
	if s.ActualDuration != nil {
		v := *s.ActualDuration
		out.ActualDuration = &v
	}
	return out
}

// IntPtr is a small helper for optional minute counts.
func IntPtr(v int) *int {
	return &v
}
