package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/timeline"
)

var (
	exportSpeakers bool
	exportDetails  bool
	showJSON       bool
	newDate        string
	newTitle       string
	newStart       string
)

var programsCmd = &cobra.Command{
	Use:     "programs",
	Aliases: []string{"p"},
	Short:   "Manage stored programs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsListRun(cmd.Context())
	},
}

var programsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List programs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsListRun(cmd.Context())
	},
}

var programsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty program",
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsNewRun(cmd.Context(), newDate, newTitle, newStart)
	},
}

var programsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a program's schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsShowRun(cmd.Context(), args[0])
	},
}

var programsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsDeleteRun(cmd.Context(), args[0])
	},
}

var programsDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Copy a program under a new id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsDuplicateRun(cmd.Context(), args[0])
	},
}

var programsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Print a program as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsExportRun(cmd.Context(), args[0])
	},
}

var programsReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Compare planned and actual slot durations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return programsReportRun(cmd.Context(), args[0])
	},
}

func init() {
	programsNewCmd.Flags().StringVar(&newDate, "date", "", "Program date as YYYY-MM-DD (default today)")
	programsNewCmd.Flags().StringVar(&newTitle, "title", "", "Program title")
	programsNewCmd.Flags().StringVar(&newStart, "start", "", "Start time as HH:MM")
	programsShowCmd.Flags().BoolVar(&showJSON, "json", false, "Print the program as JSON")
	programsExportCmd.Flags().BoolVar(&exportSpeakers, "speakers", true, "Include speaker lines")
	programsExportCmd.Flags().BoolVar(&exportDetails, "details", false, "Include slot details")

	programsCmd.AddCommand(programsListCmd)
	programsCmd.AddCommand(programsNewCmd)
	programsCmd.AddCommand(programsShowCmd)
	programsCmd.AddCommand(programsDeleteCmd)
	programsCmd.AddCommand(programsDuplicateCmd)
	programsCmd.AddCommand(programsExportCmd)
	programsCmd.AddCommand(programsReportCmd)
	rootCmd.AddCommand(programsCmd)
}

func programsListRun(ctx context.Context) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	list, err := app.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No programs yet. Create one with 'kairon draft' or 'kairon share import'.")
		return nil
	}

	table := ui.Table([]string{"ID", "TITLE", "DATE", "START", "END", "SLOTS", "MINS"})
	for _, p := range list {
		table.Append([]string{
			p.ID,
			p.Title,
			p.Date,
			p.StartTime,
			endLabel(p),
			strconv.Itoa(len(p.Slots)),
			strconv.Itoa(timeline.TotalDuration(p)),
		})
	}
	table.Render()
	return nil
}

// endLabel shows the target end, or the computed one marked with "~".
func endLabel(p models.Program) string {
	if p.EndTime != "" {
		return p.EndTime
	}
	end := timeline.EndMinutes(p) % (24 * 60)
	return fmt.Sprintf("~%02d:%02d", end/60, end%60)
}

func programsNewRun(ctx context.Context, date, title, start string) error {
	day := time.Now()
	if date != "" {
		var err error
		day, err = time.ParseInLocation(models.DateLayout, date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
		}
	}

	p := models.NewProgram(day)
	if title != "" {
		p.Title = title
	}
	if start != "" {
		m, err := clock.ParseTimeOfDay(start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		p.StartTime = fmt.Sprintf("%02d:%02d", m/60, m%60)
	}

	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	created, err := app.Create(ctx, p)
	if err != nil {
		return err
	}
	ui.Success("Created %s (%s) on %s", created.Title, created.ID, created.Date)
	ui.Info("Open it with 'kairon live %s'", created.ID)
	return nil
}

func programsShowRun(ctx context.Context, id string) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	p, err := app.Get(ctx, id)
	if err != nil {
		return err
	}

	if showJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	renderHeader(ui.Out, *p)
	fmt.Fprintln(ui.Out)
	renderSchedule(*p, -1)
	return nil
}

func programsDeleteRun(ctx context.Context, id string) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	next, err := app.Delete(ctx, id)
	if err != nil {
		return err
	}
	ui.Success("Deleted program %s", id)
	if next.IsPlaceholder() {
		ui.Info("No programs remain")
	} else {
		ui.Info("Next program: %s (%s)", next.Title, next.ID)
	}
	return nil
}

func programsDuplicateRun(ctx context.Context, id string) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	dup, err := app.Duplicate(ctx, id)
	if err != nil {
		return err
	}
	ui.Success("Created %s (%s)", dup.Title, dup.ID)
	return nil
}

func programsExportRun(ctx context.Context, id string) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	p, err := app.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, timeline.ExportText(*p, timeline.ExportOptions{
		IncludeSpeakers: exportSpeakers,
		IncludeDetails:  exportDetails,
	}))
	return nil
}

var errNoActuals = errors.New("no completed slots recorded yet")

func programsReportRun(ctx context.Context, id string) error {
	app, err := getApp(ctx)
	if err != nil {
		return err
	}
	p, err := app.Get(ctx, id)
	if err != nil {
		return err
	}
	return renderReport(*p)
}

func renderReport(p models.Program) error {
	r := timeline.Analyze(p)
	if len(r.Slots) == 0 {
		return errNoActuals
	}

	table := ui.Table([]string{"SLOT", "PLANNED", "ACTUAL", "DIFF"})
	for _, s := range r.Slots {
		table.Append([]string{
			s.Title,
			strconv.Itoa(s.Planned),
			strconv.Itoa(s.Actual),
			DeltaColor(s.Diff),
		})
	}
	table.Render()

	fmt.Fprintf(ui.Out, "\nPlanned %d min, actual %d min, adherence %d%%\n", r.TotalPlanned, r.TotalActual, r.Adherence)
	return nil
}
