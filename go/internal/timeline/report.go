package timeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// SlotReport compares planned and actual minutes for one completed slot.
type SlotReport struct {
	SlotID  string
	Title   string
	Planned int
	Actual  int
	Diff    int
}

// Report summarizes how closely a run followed its plan.
type Report struct {
	Slots        []SlotReport
	TotalPlanned int
	TotalActual  int
	Adherence    int // percent
}

// Analyze builds a Report from slots with a recorded, non-zero actual duration.
func Analyze(p models.Program) Report {
	var r Report
	for _, s := range p.Slots {
		if s.ActualDuration == nil || *s.ActualDuration <= 0 {
			continue
		}
		actual := *s.ActualDuration
		r.Slots = append(r.Slots, SlotReport{
			SlotID:  s.ID,
			Title:   s.Title,
			Planned: s.DurationMinutes,
			Actual:  actual,
			Diff:    actual - s.DurationMinutes,
		})
		r.TotalPlanned += s.DurationMinutes
		r.TotalActual += actual
	}

	r.Adherence = 100
	if r.TotalPlanned > 0 {
		dev := math.Abs(float64(r.TotalActual-r.TotalPlanned)) / float64(r.TotalPlanned)
		r.Adherence = int(math.Round((1 - dev) * 100))
	}
	return r
}

// ExportOptions selects optional lines in the plain text export.
type ExportOptions struct {
	IncludeSpeakers bool
	IncludeDetails  bool
}

// ExportText renders the schedule as plain text suitable for pasting into a message.
func ExportText(p models.Program, opts ExportOptions) string {
	var b strings.Builder
	b.WriteString(p.Title + "\n")
	if p.Subtitle != "" {
		b.WriteString(p.Subtitle + "\n")
	}
	fmt.Fprintf(&b, "Date: %s | Start: %s\n", p.Date, p.StartTime)
	b.WriteString(strings.Repeat("-", 40) + "\n\n")

	running := StartMinutes(p)
	for _, s := range p.Slots {
		fmt.Fprintf(&b, "%s - %s", clock.FormatTimeOfDay(running), s.Title)
		running += s.DurationMinutes
		if s.Type.IsBreak() {
			b.WriteString(" (Break)")
		}
		b.WriteString("\n")
		if opts.IncludeSpeakers && s.Speaker != "" {
			fmt.Fprintf(&b, "Speaker: %s\n", s.Speaker)
		}
		fmt.Fprintf(&b, "Duration: %d mins\n", s.DurationMinutes)
		if opts.IncludeDetails && s.Details != "" {
			fmt.Fprintf(&b, "Details: %s\n", s.Details)
		}
		b.WriteString("\n")
	}
	return b.String()
}
