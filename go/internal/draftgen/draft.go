package draftgen

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// ErrEmptyInput is returned when there is no text to draft from.
var ErrEmptyInput = errors.New("draftgen: empty input")

// DefaultSlotMinutes is used for slots whose length the model could not infer.
const DefaultSlotMinutes = 30

// Generator turns free text into a program draft. Implementations are slow and may fail.
type Generator interface {
	Generate(ctx context.Context, rawText string) (*Draft, error)
}

// Draft is the program shape returned by the model, before ids are assigned.
type Draft struct {
	Title     string      `json:"title"`
	Subtitle  string      `json:"subtitle"`
	Date      string      `json:"date"`
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	Slots     []DraftSlot `json:"slots"`
}

// DraftSlot is one session in a Draft.
type DraftSlot struct {
	Title           string  `json:"title"`
	Speaker         string  `json:"speaker"`
	DurationMinutes float64 `json:"durationMinutes"`
	Type            string  `json:"type"`
	Details         string  `json:"details"`
}

// ToProgram assigns fresh ids and fills defaults: speaker "TBA", start 09:00, today's date.
func (d Draft) ToProgram(now time.Time) models.Program {
	p := models.Program{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(d.Title),
		Subtitle:  strings.TrimSpace(d.Subtitle),
		Date:      d.Date,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Slots:     make([]models.Slot, 0, len(d.Slots)),
	}
	if _, err := time.Parse(models.DateLayout, p.Date); err != nil {
		p.Date = now.Format(models.DateLayout)
	}
	if p.StartTime == "" {
		p.StartTime = models.DefaultStartTime
	}
	if p.Title == "" {
		p.Title = models.PlaceholderTitle
	}

	for _, s := range d.Slots {
		minutes := int(math.Round(s.DurationMinutes))
		if minutes <= 0 {
			minutes = DefaultSlotMinutes
		}
		speaker := strings.TrimSpace(s.Speaker)
		if speaker == "" {
			speaker = "TBA"
		}
		p.Slots = append(p.Slots, models.Slot{
			ID:              uuid.NewString(),
			Title:           strings.TrimSpace(s.Title),
			Speaker:         speaker,
			DurationMinutes: minutes,
			Type:            normalizeType(s.Type),
			Details:         s.Details,
		})
	}
	return p
}

// Merge replaces the content of current with draft while keeping current's id and date.
func Merge(current, draft models.Program) models.Program {
	merged := draft.Clone()
	merged.ID = current.ID
	merged.Date = current.Date
	return merged
}

// normalizeType maps the model's upper-case tags onto the presets and keeps anything else.
func normalizeType(t string) models.SlotType {
	t = strings.TrimSpace(t)
	for _, preset := range models.SlotPresets {
		if strings.EqualFold(t, string(preset)) {
			return preset
		}
	}
	if t == "" {
		return models.SlotTypeTalk
	}
	return models.SlotType(t)
}
