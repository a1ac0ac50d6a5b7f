package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/patrickudo2004/kairon/go/internal/controller"
	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/router"
	"github.com/patrickudo2004/kairon/go/internal/session"
	"github.com/patrickudo2004/kairon/go/internal/sharelink"
	"github.com/patrickudo2004/kairon/go/internal/timeline"
)

var (
	liveMode   string
	liveView   string
	liveNoSave bool
)

var liveCmd = &cobra.Command{
	Use:   "live [program-id | share-url]",
	Short: "Run or follow a program's live timer",
	Long: `Run or follow a program's live timer.

The argument is a stored program id or a share link such as
https://host/#/live?mode=viewer&import=<token>. Viewers follow the presenter
and cannot change anything. Without an argument the newest program is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		route, err := resolveTarget(arg, liveMode, cmd.Flags().Changed("mode"), liveView)
		if err != nil {
			return err
		}
		return liveRun(cmd.Context(), route, cmd.InOrStdin())
	},
}

func init() {
	liveCmd.Flags().StringVar(&liveMode, "mode", string(router.ModeEditor), "Participant mode: editor, coeditor or viewer")
	liveCmd.Flags().StringVar(&liveView, "view", "", "View: live, list or tv")
	liveCmd.Flags().BoolVar(&liveNoSave, "no-save", false, "Do not autosave edits")

	tvCmd := &cobra.Command{
		Use:   "tv <program-id | share-url>",
		Short: "Show the full-screen countdown for a shared display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			route, err := resolveTarget(args[0], string(router.ModeViewer), true, string(router.ViewTV))
			if err != nil {
				return err
			}
			return liveRun(cmd.Context(), route, nil)
		},
	}

	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(tvCmd)
}

// resolveTarget turns the command argument into a route. A location keeps its own mode
// unless one was given explicitly. Views the mode may not use fall back to live.
func resolveTarget(arg, mode string, modeSet bool, view string) (router.Route, error) {
	var route router.Route
	if strings.ContainsAny(arg, "/?#") {
		r, err := router.Parse(arg)
		if err != nil {
			return route, err
		}
		route = r
		if modeSet {
			route.Mode = router.ParseMode(mode)
		}
	} else {
		route = router.Route{View: router.ViewLive, Mode: router.ParseMode(mode), ProgramID: arg}
	}

	if view != "" {
		route.View = router.View(view)
	}
	if !isKnownView(route.View) {
		return route, fmt.Errorf("%w: %q", router.ErrUnknownView, route.View)
	}

	resolved := router.Resolve(route)
	if resolved.View != route.View {
		ui.Warning("%s is not available in %s mode, opening %s", route.View, route.Mode, resolved.View)
	}
	switch resolved.View {
	case router.ViewHome, router.ViewEditor, router.ViewCalendar:
		// The console edits in place, so these open the live view.
		resolved.View = router.ViewLive
	}
	return resolved, nil
}

func isKnownView(v router.View) bool {
	for _, known := range router.Views {
		if v == known {
			return true
		}
	}
	return false
}

// initialProgram picks what to load: the share token, then the stored id, then the newest
// stored program, then a fresh placeholder. stored is true when p came from the store.
func initialProgram(ctx context.Context, route router.Route, app *programs.App) (p models.Program, stored bool, err error) {
	if route.Import != "" {
		if decoded := sharelink.Decode(route.Import); decoded != nil {
			return *decoded, false, nil
		}
		ui.Warning("share link could not be read, starting with an empty program")
		return models.NewProgram(time.Now()), false, nil
	}

	if app == nil {
		if route.ProgramID != "" {
			// Followers fill in the content from the presenter's program update.
			placeholder := models.NewProgram(time.Now())
			placeholder.ID = route.ProgramID
			return placeholder, false, nil
		}
		return models.NewProgram(time.Now()), false, nil
	}

	if route.ProgramID != "" {
		got, err := app.Get(ctx, route.ProgramID)
		if err != nil {
			return models.Program{}, false, err
		}
		return *got, true, nil
	}

	list, err := app.List(ctx)
	if err != nil {
		return models.Program{}, false, err
	}
	if len(list) > 0 {
		return list[0], true, nil
	}
	return models.NewProgram(time.Now()), false, nil
}

func liveRun(parent context.Context, route router.Route, in io.Reader) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	readOnly := route.Mode.ReadOnly()

	// Viewers never write, so they only need the store to look up an id.
	app, err := getApp(ctx)
	if err != nil {
		if !readOnly && !liveNoSave {
			return err
		}
		ui.Warning("program store unavailable: %v", err)
		app = nil
	}

	program, stored, err := initialProgram(ctx, route, app)
	if err != nil {
		return err
	}

	transport, err := newTransport()
	if err != nil {
		return err
	}
	defer transport.Close()

	cfg := controller.DefaultConfig(transport)
	cfg.ReadOnly = readOnly
	cfg.OnSlotComplete = func(c session.SlotCompletion) {
		log.Info().
			Str("program_id", c.ProgramID).
			Int("slot_index", c.Index).
			Int("actual_minutes", c.ActualMinutes).
			Bool("auto", c.Auto).
			Msg("slot complete")
	}

	var saver *programs.AutoSaver
	if !readOnly && app != nil && !liveNoSave {
		saver = programs.NewAutoSaver(app, programs.AutoSaveConfig{
			OnError: func(p models.Program, err error) {
				ui.Error("Could not save %s: %v", p.Title, err)
			},
			OnSaved: func(p models.Program) {
				ui.VerboseLog("saved %s", p.Title)
			},
		})
		if stored {
			saver.MarkSaved(program)
		}
		cfg.OnProgramChange = func(p models.Program) {
			saver.Schedule(p)
		}
	}

	ctrl := controller.New(cfg)
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	// Joining keeps a timer already running elsewhere; swaps inside the console reset it.
	if err := ctrl.JoinProgram(ctx, program); err != nil {
		return err
	}

	views, unwatch := ctrl.Watch()
	defer unwatch()

	lines := readLines(in)
	r := &renderer{view: route.View}
	if route.View != router.ViewTV {
		ui.Info("%s as %s. Type 'h' for commands.", program.Title, route.Mode)
	}

	for {
		select {
		case v, ok := <-views:
			if !ok {
				views = nil
				continue
			}
			r.render(v)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := handleLine(ctx, ctrl, route.Mode, line); quit {
				stop()
			}

		case <-ctx.Done():
			fmt.Fprintln(ui.Out)
			err := <-runErr
			if saver != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if serr := saver.Close(closeCtx); serr != nil {
					ui.Error("Final save failed: %v", serr)
				}
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// readLines streams stdin lines. A nil reader yields a channel that never delivers.
func readLines(in io.Reader) <-chan string {
	out := make(chan string)
	if in == nil {
		return out
	}
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

// handleLine runs one console command and reports whether the console should exit.
func handleLine(ctx context.Context, ctrl *controller.Controller, mode router.Mode, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		ui.Warning("%v", err)
		return false
	}
	if cmd.Mutates() && !mode.CanMutate() {
		ui.Warning("view-only session: %s is not available", cmd.Action)
		return false
	}

	switch cmd.Action {
	case actQuit:
		return true
	case actHelp:
		fmt.Fprintln(ui.Out, liveHelp)
		return false
	case actList:
		v, err := ctrl.View(ctx)
		if err == nil {
			renderSchedule(v.Program, v.CurrentIndex)
		}
		return false
	case actShare:
		v, err := ctrl.View(ctx)
		if err == nil {
			if err := shareLinkRun(v.Program, router.ModeViewer); err != nil {
				ui.Error("%v", err)
			}
		}
		return false
	}

	if err := applyCommand(ctx, ctrl, cmd); err != nil {
		ui.Warning("%v", err)
	}
	return false
}

func applyCommand(ctx context.Context, ctrl *controller.Controller, cmd liveCommand) error {
	var err error
	switch cmd.Action {
	case actStart:
		_, err = ctrl.Start(ctx)
	case actPause:
		_, err = ctrl.Pause(ctx)
	case actToggle:
		_, err = ctrl.Toggle(ctx)
	case actNext:
		_, err = ctrl.Next(ctx)
	case actPrev:
		_, err = ctrl.Prev(ctx)
	case actRestart:
		_, err = ctrl.Restart(ctx)
	case actNew:
		date := time.Now()
		if cmd.Value != "" {
			date, err = time.ParseInLocation(models.DateLayout, cmd.Value, time.Local)
			if err != nil {
				return err
			}
		}
		// A new program is a swap: every peer resets to its first slot.
		err = ctrl.LoadProgram(ctx, models.NewProgram(date))
	case actAdd, actRemove, actMove, actInsert, actDup, actSet, actHeader:
		var v session.View
		v, err = ctrl.View(ctx)
		if err != nil {
			return err
		}
		p, editErr := editProgram(v.Program, cmd)
		if editErr != nil {
			return editErr
		}
		_, err = ctrl.EditProgram(ctx, p)
	}
	return err
}

// editProgram applies a content edit to a copy of p.
func editProgram(p models.Program, cmd liveCommand) (models.Program, error) {
	out := p.Clone()
	switch cmd.Action {
	case actAdd:
		out.Slots = timeline.Append(out.Slots, typedSlot(cmd.Title, cmd.Minutes))
	case actInsert:
		if cmd.From > len(out.Slots) {
			return p, fmt.Errorf("slot number must be between 1 and %d", len(out.Slots)+1)
		}
		out.Slots = timeline.Insert(out.Slots, cmd.From, typedSlot(cmd.Title, cmd.Minutes))
	case actDup:
		if cmd.From >= len(out.Slots) {
			return p, fmt.Errorf("no slot %d", cmd.From+1)
		}
		out.Slots = timeline.Duplicate(out.Slots, cmd.From)
	case actSet:
		if cmd.From >= len(out.Slots) {
			return p, fmt.Errorf("no slot %d", cmd.From+1)
		}
		slot, err := setSlotField(out.Slots[cmd.From], cmd.Field, cmd.Value)
		if err != nil {
			return p, err
		}
		out.Slots = timeline.Update(out.Slots, slot)
	case actHeader:
		switch cmd.Field {
		case "title":
			out.Title = cmd.Value
		case "subtitle":
			out.Subtitle = cmd.Value
		case "date":
			out.Date = cmd.Value
		case "start":
			out.StartTime = cmd.Value
		case "end":
			out.EndTime = cmd.Value
		default:
			return p, fmt.Errorf("unknown program field %q", cmd.Field)
		}
	case actRemove:
		if cmd.From >= len(out.Slots) {
			return p, fmt.Errorf("no slot %d", cmd.From+1)
		}
		out.Slots = timeline.Remove(out.Slots, out.Slots[cmd.From].ID)
	case actMove:
		if cmd.From >= len(out.Slots) || cmd.To >= len(out.Slots) {
			return p, fmt.Errorf("slot numbers must be between 1 and %d", len(out.Slots))
		}
		out.Slots = timeline.Reorder(out.Slots, cmd.From, cmd.To)
	}
	return out, nil
}

func typedSlot(title string, minutes int) models.Slot {
	slot := timeline.NewSlot()
	slot.Title = title
	slot.DurationMinutes = minutes
	if strings.EqualFold(title, "break") {
		slot.Type = models.SlotTypeBreak
	}
	return slot
}

func setSlotField(s models.Slot, field, value string) (models.Slot, error) {
	switch field {
	case "title":
		s.Title = value
	case "speaker":
		s.Speaker = value
	case "details":
		s.Details = value
	case "duration":
		m, err := strconv.Atoi(value)
		if err != nil || m <= 0 {
			return s, fmt.Errorf("invalid minutes %q", value)
		}
		s.DurationMinutes = m
	case "type":
		s.Type = models.SlotType(value)
		for _, preset := range models.SlotPresets {
			if strings.EqualFold(value, string(preset)) {
				s.Type = preset
			}
		}
	default:
		return s, fmt.Errorf("unknown slot field %q", field)
	}
	return s, nil
}

// renderer draws views for one screen, redrawing tables only when the schedule changes.
type renderer struct {
	view router.View

	lastIndex   int
	lastProgram *models.Program
}

func (r *renderer) scheduleChanged(v session.View) bool {
	changed := r.lastProgram == nil || r.lastIndex != v.CurrentIndex || !r.lastProgram.Equal(v.Program)
	p := v.Program.Clone()
	r.lastProgram = &p
	r.lastIndex = v.CurrentIndex
	return changed
}

func (r *renderer) render(v session.View) {
	switch r.view {
	case router.ViewTV:
		// Clear the screen and home the cursor.
		fmt.Fprint(ui.Out, "\033[H\033[2J")
		fmt.Fprint(ui.Out, tvScreen(v))
	case router.ViewList:
		if r.scheduleChanged(v) {
			fmt.Fprintln(ui.Out)
			renderHeader(ui.Out, v.Program)
			renderSchedule(v.Program, v.CurrentIndex)
		}
		fmt.Fprintf(ui.Out, "\r\033[K%s", liveLine(v))
	default:
		if r.scheduleChanged(v) {
			ui.VerboseLog("schedule: %d slots, %d min", len(v.Program.Slots), timeline.TotalDuration(v.Program))
		}
		fmt.Fprintf(ui.Out, "\r\033[K%s", liveLine(v))
	}
}
