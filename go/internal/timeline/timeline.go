package timeline

import (
	"github.com/google/uuid"
	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// StartMinutes returns the program start as minutes since midnight.
func StartMinutes(p models.Program) int {
	return clock.MinutesOrZero(p.StartTime)
}

// SlotStartMinutes returns when slot index begins: program start plus every earlier duration.
// An index equal to the slot count yields the computed end of the program.
func SlotStartMinutes(p models.Program, index int) int {
	start := StartMinutes(p)
	for i := 0; i < index && i < len(p.Slots); i++ {
		start += p.Slots[i].DurationMinutes
	}
	return start
}

// TotalDuration sums every slot duration in minutes.
func TotalDuration(p models.Program) int {
	total := 0
	for _, s := range p.Slots {
		total += s.DurationMinutes
	}
	return total
}

// EndMinutes is the computed finish of the program.
func EndMinutes(p models.Program) int {
	return StartMinutes(p) + TotalDuration(p)
}

// BudgetDelta returns target end minus computed end. Positive means slack, negative means
// the schedule runs over. ok is false when the program has no target end time.
func BudgetDelta(p models.Program) (delta int, ok bool) {
	if p.EndTime == "" {
		return 0, false
	}
	target, err := clock.ParseTimeOfDay(p.EndTime)
	if err != nil {
		return 0, false
	}
	return target - EndMinutes(p), true
}

// Reorder moves the slot at from to position to, shifting the slots in between.
// Out of range indices return an unchanged copy.
func Reorder(slots []models.Slot, from, to int) []models.Slot {
	out := cloneSlots(slots)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]models.Slot{moved}, out[to:]...)...)
	return out
}

// Insert places slot at index, clamped to the ends of the sequence.
func Insert(slots []models.Slot, index int, slot models.Slot) []models.Slot {
	out := cloneSlots(slots)
	if index < 0 {
		index = 0
	}
	if index > len(out) {
		index = len(out)
	}
	out = append(out[:index], append([]models.Slot{slot}, out[index:]...)...)
	return out
}

// Append adds slot at the end.
func Append(slots []models.Slot, slot models.Slot) []models.Slot {
	return Insert(slots, len(slots), slot)
}

// Duplicate copies the slot at index with a new id and a " (Copy)" title, directly after the source.
func Duplicate(slots []models.Slot, index int) []models.Slot {
	if index < 0 || index >= len(slots) {
		return cloneSlots(slots)
	}
	dup := slots[index].Clone()
	dup.ID = uuid.NewString()
	dup.Title = dup.Title + " (Copy)"
	return Insert(slots, index+1, dup)
}

// Remove drops the slot with the given id.
func Remove(slots []models.Slot, slotID string) []models.Slot {
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if s.ID != slotID {
			out = append(out, s.Clone())
		}
	}
	return out
}

// NewSlot returns the default slot added by the editor.
func NewSlot() models.Slot {
	return models.Slot{
		ID:              uuid.NewString(),
		Title:           "New Session",
		Speaker:         "TBA",
		DurationMinutes: 15,
		Type:            models.SlotTypeTalk,
	}
}

// Update replaces the slot carrying the same id, leaving order intact.
func Update(slots []models.Slot, slot models.Slot) []models.Slot {
	out := cloneSlots(slots)
	for i := range out {
		if out[i].ID == slot.ID {
			out[i] = slot.Clone()
		}
	}
	return out
}

func cloneSlots(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	return out
}
