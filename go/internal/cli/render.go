package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/session"
	"github.com/patrickudo2004/kairon/go/internal/timeline"
)

// liveLine renders the one-line presenter status for a view.
func liveLine(v session.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", StatusColor(v.Status))

	switch v.Status {
	case session.StatusIdle:
		sb.WriteString("no slots")
		return sb.String()
	case session.StatusComplete:
		fmt.Fprintf(&sb, "%s complete", v.Program.Title)
		return sb.String()
	}

	cur := v.Current
	fmt.Fprintf(&sb, "%d/%d %s", v.CurrentIndex+1, len(v.Program.Slots), bold(cur.Title))
	if cur.Speaker != "" {
		fmt.Fprintf(&sb, " (%s)", cur.Speaker)
	}
	if v.Overtime() {
		over := v.SecondsElapsed - cur.DurationMinutes*60
		fmt.Fprintf(&sb, "  %s", red("+"+clock.FormatCountdown(over)+" over"))
	} else {
		fmt.Fprintf(&sb, "  %s left", v.Countdown())
	}
	fmt.Fprintf(&sb, "  %s", progressBar(v.Progress, 20))
	if v.Next != nil {
		fmt.Fprintf(&sb, "  next: %s", v.Next.Title)
	}
	if v.ReadOnly {
		sb.WriteString("  (view only)")
	}
	return sb.String()
}

// tvScreen renders the full-screen countdown shown on a shared display.
func tvScreen(v session.View) string {
	var sb strings.Builder
	sb.WriteString(bold(v.Program.Title))
	sb.WriteString("\n\n")

	switch v.Status {
	case session.StatusIdle:
		sb.WriteString("Waiting for the program\n")
		return sb.String()
	case session.StatusComplete:
		sb.WriteString("Thank you!\n")
		return sb.String()
	}

	sb.WriteString(strings.ToUpper(v.Current.Title))
	sb.WriteString("\n")
	if v.Current.Speaker != "" {
		sb.WriteString(v.Current.Speaker)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if v.Overtime() {
		sb.WriteString(red("+" + clock.FormatCountdown(v.SecondsElapsed-v.Current.DurationMinutes*60)))
	} else {
		sb.WriteString(v.Countdown())
	}
	sb.WriteString("\n")
	if v.Next != nil {
		fmt.Fprintf(&sb, "\nUp next: %s\n", v.Next.Title)
	}
	return sb.String()
}

// progressBar draws the fraction of time remaining.
func progressBar(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// renderSchedule prints the slot table with start times. current < 0 marks nothing.
func renderSchedule(p models.Program, current int) {
	table := ui.Table([]string{"", "#", "START", "TITLE", "SPEAKER", "MINS", "TYPE", "ACTUAL"})
	for i, s := range p.Slots {
		marker := ""
		switch {
		case i == current:
			marker = green("▶")
		case i < current:
			marker = cyan("✓")
		}
		actual := ""
		if s.ActualDuration != nil {
			actual = strconv.Itoa(*s.ActualDuration)
		}
		table.Append([]string{
			marker,
			strconv.Itoa(i + 1),
			clock.FormatTimeOfDay(timeline.SlotStartMinutes(p, i)),
			s.Title,
			s.Speaker,
			strconv.Itoa(s.DurationMinutes),
			string(s.Type),
			actual,
		})
	}
	table.Render()
}

// renderHeader prints the program title block and its budget line.
func renderHeader(w io.Writer, p models.Program) {
	fmt.Fprintln(w, bold(p.Title))
	if p.Subtitle != "" {
		fmt.Fprintln(w, p.Subtitle)
	}
	fmt.Fprintf(w, "%s  %s - %s  (%d min)\n",
		p.Date,
		clock.FormatTimeOfDay(timeline.StartMinutes(p)),
		clock.FormatTimeOfDay(timeline.EndMinutes(p)),
		timeline.TotalDuration(p),
	)
	if delta, ok := timeline.BudgetDelta(p); ok {
		if delta >= 0 {
			fmt.Fprintf(w, "Target end %s: %s\n", p.EndTime, green(fmt.Sprintf("%d min to spare", delta)))
		} else {
			fmt.Fprintf(w, "Target end %s: %s\n", p.EndTime, red(fmt.Sprintf("%d min over", -delta)))
		}
	}
}
