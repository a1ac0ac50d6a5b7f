package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/draftgen"
	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/router"
	"github.com/patrickudo2004/kairon/go/internal/session"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func newTestUI(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ui = &UI{Out: out, ErrOut: errOut}
	return out, errOut
}

func useMemoryStore(t *testing.T) *programs.App {
	t.Helper()
	programApp = programs.NewApp(programs.NewMemoryStore())
	t.Cleanup(func() { programApp = nil })
	return programApp
}

func sampleProgram() models.Program {
	return models.Program{
		ID:        "p1",
		Title:     "Summit",
		Date:      "2026-05-10",
		StartTime: "09:00",
		EndTime:   "10:00",
		Slots: []models.Slot{
			{ID: "a", Title: "Opening", Speaker: "Ada", DurationMinutes: 10, Type: models.SlotTypeKeynote},
			{ID: "b", Title: "Coffee", DurationMinutes: 15, Type: models.SlotTypeBreak, ActualDuration: models.IntPtr(20)},
			{ID: "c", Title: "Panel", Speaker: "Team", DurationMinutes: 30, Type: models.SlotTypePanel},
		},
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    liveCommand
		wantErr bool
	}{
		{line: "s", want: liveCommand{Action: actStart}},
		{line: " ", want: liveCommand{Action: actToggle}},
		{line: "NEXT", want: liveCommand{Action: actNext}},
		{line: "add 15 Coffee break", want: liveCommand{Action: actAdd, Minutes: 15, Title: "Coffee break"}},
		{line: "rm 2", want: liveCommand{Action: actRemove, From: 1}},
		{line: "mv 3 1", want: liveCommand{Action: actMove, From: 2, To: 0}},
		{line: "ins 2 5 Prayer", want: liveCommand{Action: actInsert, From: 1, Minutes: 5, Title: "Prayer"}},
		{line: "dup 3", want: liveCommand{Action: actDup, From: 2}},
		{line: "set 1 speaker Grace Hopper", want: liveCommand{Action: actSet, From: 0, Field: "speaker", Value: "Grace Hopper"}},
		{line: "set 2 mins 25", want: liveCommand{Action: actSet, From: 1, Field: "duration", Value: "25"}},
		{line: "set 2 details", want: liveCommand{Action: actSet, From: 1, Field: "details"}},
		{line: "prog start 9:05", want: liveCommand{Action: actHeader, Field: "start", Value: "09:05"}},
		{line: "prog end", want: liveCommand{Action: actHeader, Field: "end"}},
		{line: "prog subtitle Day two", want: liveCommand{Action: actHeader, Field: "subtitle", Value: "Day two"}},
		{line: "new", want: liveCommand{Action: actNew}},
		{line: "new 2026-06-01", want: liveCommand{Action: actNew, Value: "2026-06-01"}},
		{line: "add ten Intro", wantErr: true},
		{line: "ins 0 5 Prayer", wantErr: true},
		{line: "dup", wantErr: true},
		{line: "set 1 colour red", wantErr: true},
		{line: "set 1 mins zero", wantErr: true},
		{line: "set 1 title", wantErr: true},
		{line: "prog date 10/05/2026", wantErr: true},
		{line: "prog start 25:00", wantErr: true},
		{line: "prog title", wantErr: true},
		{line: "prog venue Hall", wantErr: true},
		{line: "new tomorrow", wantErr: true},
		{line: "add 5", wantErr: true},
		{line: "rm 0", wantErr: true},
		{line: "mv 1", wantErr: true},
		{line: "dance", wantErr: true},
		{line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandMutates(t *testing.T) {
	assert.True(t, liveCommand{Action: actStart}.Mutates())
	assert.True(t, liveCommand{Action: actAdd}.Mutates())
	assert.False(t, liveCommand{Action: actList}.Mutates())
	assert.False(t, liveCommand{Action: actQuit}.Mutates())
}

func TestEditProgram(t *testing.T) {
	p := sampleProgram()

	added, err := editProgram(p, liveCommand{Action: actAdd, Minutes: 5, Title: "Break"})
	require.NoError(t, err)
	require.Len(t, added.Slots, 4)
	assert.Equal(t, models.SlotTypeBreak, added.Slots[3].Type)
	assert.Equal(t, 5, added.Slots[3].DurationMinutes)
	assert.Len(t, p.Slots, 3, "input is not modified")

	moved, err := editProgram(p, liveCommand{Action: actMove, From: 2, To: 0})
	require.NoError(t, err)
	assert.Equal(t, "c", moved.Slots[0].ID)

	removed, err := editProgram(p, liveCommand{Action: actRemove, From: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, []string{removed.Slots[0].ID, removed.Slots[1].ID})

	_, err = editProgram(p, liveCommand{Action: actRemove, From: 7})
	assert.Error(t, err)
	_, err = editProgram(p, liveCommand{Action: actMove, From: 0, To: 3})
	assert.Error(t, err)
}

func TestEditProgramSlotFields(t *testing.T) {
	p := sampleProgram()

	inserted, err := editProgram(p, liveCommand{Action: actInsert, From: 1, Minutes: 5, Title: "Prayer"})
	require.NoError(t, err)
	require.Len(t, inserted.Slots, 4)
	assert.Equal(t, "Prayer", inserted.Slots[1].Title)
	assert.Equal(t, "b", inserted.Slots[2].ID)

	atEnd, err := editProgram(p, liveCommand{Action: actInsert, From: 3, Minutes: 5, Title: "Close"})
	require.NoError(t, err)
	assert.Equal(t, "Close", atEnd.Slots[3].Title)
	_, err = editProgram(p, liveCommand{Action: actInsert, From: 4, Minutes: 5, Title: "Close"})
	assert.Error(t, err)

	duped, err := editProgram(p, liveCommand{Action: actDup, From: 0})
	require.NoError(t, err)
	require.Len(t, duped.Slots, 4)
	assert.Equal(t, "Opening (Copy)", duped.Slots[1].Title)
	assert.NotEqual(t, "a", duped.Slots[1].ID)
	_, err = editProgram(p, liveCommand{Action: actDup, From: 3})
	assert.Error(t, err)

	edits := []struct {
		field, value string
		check        func(models.Slot)
	}{
		{"title", "Fireside", func(s models.Slot) { assert.Equal(t, "Fireside", s.Title) }},
		{"speaker", "Grace", func(s models.Slot) { assert.Equal(t, "Grace", s.Speaker) }},
		{"duration", "45", func(s models.Slot) { assert.Equal(t, 45, s.DurationMinutes) }},
		{"type", "worship", func(s models.Slot) { assert.Equal(t, models.SlotTypeWorship, s.Type) }},
		{"type", "Q&A", func(s models.Slot) { assert.Equal(t, models.SlotType("Q&A"), s.Type) }},
		{"details", "Room 2", func(s models.Slot) { assert.Equal(t, "Room 2", s.Details) }},
	}
	for _, e := range edits {
		got, err := editProgram(p, liveCommand{Action: actSet, From: 2, Field: e.field, Value: e.value})
		require.NoError(t, err, e.field)
		assert.Equal(t, "c", got.Slots[2].ID)
		e.check(got.Slots[2])
	}
	assert.Equal(t, "Panel", p.Slots[2].Title, "input is not modified")

	_, err = editProgram(p, liveCommand{Action: actSet, From: 5, Field: "title", Value: "x"})
	assert.Error(t, err)
}

func TestEditProgramHeader(t *testing.T) {
	p := sampleProgram()

	for field, value := range map[string]string{
		"title": "Retreat", "subtitle": "Day two", "date": "2026-06-01", "start": "10:30", "end": "",
	} {
		got, err := editProgram(p, liveCommand{Action: actHeader, Field: field, Value: value})
		require.NoError(t, err, field)
		switch field {
		case "title":
			assert.Equal(t, value, got.Title)
		case "subtitle":
			assert.Equal(t, value, got.Subtitle)
		case "date":
			assert.Equal(t, value, got.Date)
		case "start":
			assert.Equal(t, value, got.StartTime)
		case "end":
			assert.Empty(t, got.EndTime)
		}
		assert.Equal(t, p.Slots, got.Slots)
	}
}

func runningView() session.View {
	p := sampleProgram()
	return session.View{
		Program:        p,
		Status:         session.StatusRunning,
		CurrentIndex:   0,
		SecondsElapsed: 75,
		Remaining:      525,
		Progress:       0.875,
		Current:        &p.Slots[0],
		Next:           &p.Slots[1],
	}
}

func TestLiveLine(t *testing.T) {
	v := runningView()
	line := liveLine(v)
	assert.Contains(t, line, "[RUNNING]")
	assert.Contains(t, line, "1/3 Opening (Ada)")
	assert.Contains(t, line, "08:45 left")
	assert.Contains(t, line, "next: Coffee")
	assert.NotContains(t, line, "view only")

	v.SecondsElapsed = 660
	v.Remaining = 0
	v.ReadOnly = true
	line = liveLine(v)
	assert.Contains(t, line, "+01:00 over")
	assert.Contains(t, line, "(view only)")

	assert.Equal(t, "[IDLE] no slots", liveLine(session.View{Status: session.StatusIdle}))
	assert.Contains(t, liveLine(session.View{Status: session.StatusComplete, Program: sampleProgram()}), "Summit complete")
}

func TestTVScreen(t *testing.T) {
	screen := tvScreen(runningView())
	assert.Contains(t, screen, "OPENING")
	assert.Contains(t, screen, "08:45")
	assert.Contains(t, screen, "Up next: Coffee")

	assert.Contains(t, tvScreen(session.View{Status: session.StatusComplete}), "Thank you!")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[##########]", progressBar(1, 10))
	assert.Equal(t, "[#####.....]", progressBar(0.5, 10))
	assert.Equal(t, "[..........]", progressBar(0, 10))
	assert.Equal(t, "[..........]", progressBar(-1, 10))
}

func TestRenderHeader(t *testing.T) {
	var buf bytes.Buffer
	renderHeader(&buf, sampleProgram())
	out := buf.String()
	assert.Contains(t, out, "9:00 AM - 9:55 AM")
	assert.Contains(t, out, "5 min to spare")

	p := sampleProgram()
	p.EndTime = "09:30"
	buf.Reset()
	renderHeader(&buf, p)
	assert.Contains(t, buf.String(), "25 min over")
}

func TestResolveTarget(t *testing.T) {
	newTestUI(t)

	tests := []struct {
		name    string
		arg     string
		mode    string
		modeSet bool
		view    string
		want    router.Route
	}{
		{
			name: "bare id",
			arg:  "p1",
			mode: "editor",
			want: router.Route{View: router.ViewLive, Mode: router.ModeEditor, ProgramID: "p1"},
		},
		{
			name: "viewer link keeps its mode",
			arg:  "https://kairon.example/#/live?mode=viewer&import=tok",
			mode: "editor",
			want: router.Route{View: router.ViewLive, Mode: router.ModeViewer, Import: "tok"},
		},
		{
			name:    "explicit mode overrides link",
			arg:     "/list?mode=viewer&id=p1",
			mode:    "coeditor",
			modeSet: true,
			want:    router.Route{View: router.ViewList, Mode: router.ModeCoEditor, ProgramID: "p1"},
		},
		{
			name: "viewer editor link redirects",
			arg:  "/editor?mode=viewer&import=tok",
			want: router.Route{View: router.ViewLive, Mode: router.ModeViewer, Import: "tok"},
		},
		{
			name: "tv view flag",
			arg:  "p1",
			mode: "viewer",
			view: "tv",
			want: router.Route{View: router.ViewTV, Mode: router.ModeViewer, ProgramID: "p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.arg, tt.mode, tt.modeSet, tt.view)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolveTarget("p1", "editor", false, "settings")
	assert.ErrorIs(t, err, router.ErrUnknownView)
}

func TestInitialProgram(t *testing.T) {
	newTestUI(t)
	ctx := context.Background()
	app := useMemoryStore(t)

	p, stored, err := initialProgram(ctx, router.Route{Mode: router.ModeEditor}, app)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.True(t, p.IsPlaceholder())

	require.NoError(t, app.Save(ctx, sampleProgram()))

	p, stored, err = initialProgram(ctx, router.Route{Mode: router.ModeEditor}, app)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, "p1", p.ID)

	_, _, err = initialProgram(ctx, router.Route{ProgramID: "missing"}, app)
	assert.ErrorIs(t, err, programs.ErrNotFound)

	p, stored, err = initialProgram(ctx, router.Route{Import: "%%%"}, app)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.True(t, p.IsPlaceholder())

	p, _, err = initialProgram(ctx, router.Route{ProgramID: "remote"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote", p.ID)
}

func TestShareLinkRoundTrip(t *testing.T) {
	out, _ := newTestUI(t)
	viper.Set("share.base_url", "https://kairon.example")
	t.Cleanup(viper.Reset)

	require.NoError(t, shareLinkRun(sampleProgram(), router.ModeViewer))
	link := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(link, "https://kairon.example/#/live?mode=viewer&id=p1&import="))

	got, err := decodeArg(link)
	require.NoError(t, err)
	assert.Equal(t, sampleProgram(), *got)

	token := tokenFromArg(link)
	got, err = decodeArg(token)
	require.NoError(t, err)
	assert.Equal(t, "Summit", got.Title)

	_, err = decodeArg("not-a-token")
	assert.ErrorIs(t, err, errInvalidShareLink)
}

func TestShareImport(t *testing.T) {
	out, _ := newTestUI(t)
	app := useMemoryStore(t)

	require.NoError(t, shareLinkRun(sampleProgram(), router.ModeCoEditor))
	link := strings.TrimSpace(out.String())

	require.NoError(t, shareImportRun(context.Background(), link))
	got, err := app.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, got.Slots, 3)
}

func TestRenderReport(t *testing.T) {
	out, _ := newTestUI(t)

	require.NoError(t, renderReport(sampleProgram()))
	assert.Contains(t, out.String(), "Coffee")
	assert.Contains(t, out.String(), "+5")
	assert.Contains(t, out.String(), "adherence 67%")

	p := sampleProgram()
	p.Slots[1].ActualDuration = nil
	assert.ErrorIs(t, renderReport(p), errNoActuals)
}

type stubGenerator struct {
	draft *draftgen.Draft
	err   error
}

func (s stubGenerator) Generate(context.Context, string) (*draftgen.Draft, error) {
	return s.draft, s.err
}

func TestDraftRun(t *testing.T) {
	ctx := context.Background()
	newTestUI(t)
	app := useMemoryStore(t)
	require.NoError(t, app.Save(ctx, sampleProgram()))

	draftInto, draftSave = "p1", true
	t.Cleanup(func() { draftInto, draftSave = "", false })

	gen := stubGenerator{draft: &draftgen.Draft{
		Title: "Summit v2",
		Slots: []draftgen.DraftSlot{{Title: "Welcome", DurationMinutes: 5, Type: "TALK"}},
	}}
	require.NoError(t, draftRun(ctx, gen, "notes"))

	got, err := app.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Summit v2", got.Title)
	assert.Equal(t, "2026-05-10", got.Date)
	require.Len(t, got.Slots, 1)
	assert.Equal(t, "TBA", got.Slots[0].Speaker)
}

func TestDraftRunFailureLeavesProgram(t *testing.T) {
	ctx := context.Background()
	newTestUI(t)
	app := useMemoryStore(t)
	require.NoError(t, app.Save(ctx, sampleProgram()))

	draftInto, draftSave = "p1", true
	t.Cleanup(func() { draftInto, draftSave = "", false })

	boom := errors.New("overloaded")
	err := draftRun(ctx, stubGenerator{err: boom}, "notes")
	assert.ErrorIs(t, err, boom)

	got, err := app.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Summit", got.Title)
}

func TestLiveRunEditsAndAutosaves(t *testing.T) {
	newTestUI(t)
	app := useMemoryStore(t)
	viper.Set("transport", "memory")
	t.Cleanup(viper.Reset)

	input := strings.NewReader("add 5 Intro\nadd 10 Talk\nmv 2 1\nq\n")

	done := make(chan error, 1)
	go func() {
		done <- liveRun(context.Background(), router.Route{View: router.ViewLive, Mode: router.ModeEditor}, input)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("live console did not exit")
	}

	list, err := app.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Slots, 2)
	assert.Equal(t, "Talk", list[0].Slots[0].Title)
	assert.Equal(t, "Intro", list[0].Slots[1].Title)
}

func TestLiveRunNewProgramAndFieldEdits(t *testing.T) {
	newTestUI(t)
	app := useMemoryStore(t)
	viper.Set("transport", "memory")
	t.Cleanup(viper.Reset)

	input := strings.NewReader(strings.Join([]string{
		"new 2026-06-01",
		"prog title Retreat",
		"prog start 10:30",
		"add 5 Intro",
		"set 1 speaker Grace",
		"dup 1",
		"ins 1 3 Welcome",
		"q",
	}, "\n") + "\n")

	done := make(chan error, 1)
	go func() {
		done <- liveRun(context.Background(), router.Route{View: router.ViewLive, Mode: router.ModeEditor}, input)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("live console did not exit")
	}

	list, err := app.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "Retreat", got.Title)
	assert.Equal(t, "2026-06-01", got.Date)
	assert.Equal(t, "10:30", got.StartTime)
	require.Len(t, got.Slots, 3)
	assert.Equal(t, "Welcome", got.Slots[0].Title)
	assert.Equal(t, "Intro", got.Slots[1].Title)
	assert.Equal(t, "Grace", got.Slots[1].Speaker)
	assert.Equal(t, "Intro (Copy)", got.Slots[2].Title)
	assert.Equal(t, "Grace", got.Slots[2].Speaker)
}

func TestProgramsNewRun(t *testing.T) {
	out, _ := newTestUI(t)
	app := useMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, programsNewRun(ctx, "2026-06-01", "Retreat", "8:15"))
	list, err := app.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Retreat", list[0].Title)
	assert.Equal(t, "2026-06-01", list[0].Date)
	assert.Equal(t, "08:15", list[0].StartTime)
	assert.Empty(t, list[0].Slots)
	assert.Contains(t, out.String(), list[0].ID)

	require.NoError(t, programsNewRun(ctx, "", "", ""))
	list, err = app.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.Error(t, programsNewRun(ctx, "June 1", "", ""))
	assert.Error(t, programsNewRun(ctx, "2026-06-01", "", "noon"))
}

func TestLiveRunViewerCannotEdit(t *testing.T) {
	_, errOut := newTestUI(t)
	app := useMemoryStore(t)
	viper.Set("transport", "memory")
	t.Cleanup(viper.Reset)

	ctx := context.Background()
	require.NoError(t, app.Save(ctx, sampleProgram()))

	input := strings.NewReader("add 5 Intro\ns\nq\n")
	route := router.Route{View: router.ViewLive, Mode: router.ModeViewer, ProgramID: "p1"}
	require.NoError(t, liveRun(ctx, route, input))

	assert.Contains(t, errOut.String(), "view-only session")
	got, err := app.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, sampleProgram(), *got)
}
