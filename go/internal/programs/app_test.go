package programs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

func sampleProgram(id string) models.Program {
	return models.Program{
		ID:        id,
		Title:     "Conference",
		Date:      "2026-05-10",
		StartTime: "09:00",
		Slots: []models.Slot{
			{ID: "a", Title: "Opening", Speaker: "Ada", DurationMinutes: 10, Type: models.SlotTypeKeynote},
			{ID: "b", Title: "Coffee", Speaker: "", DurationMinutes: 15, Type: models.SlotTypeBreak, ActualDuration: models.IntPtr(17)},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *models.Program)
		ok     bool
	}{
		{"valid", func(p *models.Program) {}, true},
		{"missing id", func(p *models.Program) { p.ID = "" }, false},
		{"missing title", func(p *models.Program) { p.Title = "" }, false},
		{"bad date", func(p *models.Program) { p.Date = "10/05/2026" }, false},
		{"bad start", func(p *models.Program) { p.StartTime = "9am" }, false},
		{"bad end", func(p *models.Program) { p.EndTime = "25:00" }, false},
		{"duplicate slot id", func(p *models.Program) { p.Slots[1].ID = "a" }, false},
		{"negative duration", func(p *models.Program) { p.Slots[0].DurationMinutes = -1 }, false},
		{"zero duration allowed", func(p *models.Program) { p.Slots[0].DurationMinutes = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleProgram("p1")
			tt.modify(&p)
			err := Validate(p)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestAppCreateAndSave(t *testing.T) {
	ctx := context.Background()
	app := NewApp(NewMemoryStore())

	_, err := app.Create(ctx, sampleProgram("p1"))
	require.NoError(t, err)

	_, err = app.Create(ctx, sampleProgram("p1"))
	assert.Error(t, err)

	p := sampleProgram("p1")
	p.Title = "Renamed"
	require.NoError(t, app.Save(ctx, p))

	got, err := app.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	assert.ErrorIs(t, app.Update(ctx, sampleProgram("missing")), ErrNotFound)
	_, err = app.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppDuplicate(t *testing.T) {
	ctx := context.Background()
	app := NewApp(NewMemoryStore())
	_, err := app.Create(ctx, sampleProgram("p1"))
	require.NoError(t, err)

	dup, err := app.Duplicate(ctx, "p1")
	require.NoError(t, err)

	assert.NotEqual(t, "p1", dup.ID)
	assert.Equal(t, "Conference (Copy)", dup.Title)
	require.Len(t, dup.Slots, 2)
	assert.NotEqual(t, "a", dup.Slots[0].ID)
	assert.NotEqual(t, dup.Slots[0].ID, dup.Slots[1].ID)
	assert.Equal(t, "Opening", dup.Slots[0].Title)
	assert.Equal(t, 17, *dup.Slots[1].ActualDuration)

	all, err := app.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, dup.ID, all[0].ID, "newest first")
}

func TestAppDeleteReturnsNextProgram(t *testing.T) {
	ctx := context.Background()
	app := NewApp(NewMemoryStore())
	app.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	_, err := app.Create(ctx, sampleProgram("p1"))
	require.NoError(t, err)
	_, err = app.Create(ctx, sampleProgram("p2"))
	require.NoError(t, err)

	next, err := app.Delete(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "p1", next.ID)

	next, err = app.Delete(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, next.IsPlaceholder())
	assert.Equal(t, "2026-06-01", next.Date)
	assert.NotEmpty(t, next.ID)

	_, err = app.Delete(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := sampleProgram("p1")
	_, err := store.Create(ctx, p)
	require.NoError(t, err)

	p.Slots[0].Title = "mutated"
	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Opening", got.Slots[0].Title)

	got.Slots[0].Title = "mutated again"
	again, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Opening", again.Slots[0].Title)
}

func TestParseChange(t *testing.T) {
	c, err := ParseChange(`{"id":"p1","op":"UPDATE"}`)
	require.NoError(t, err)
	assert.Equal(t, Change{ProgramID: "p1", Op: "UPDATE"}, c)

	_, err = ParseChange(`{"op":"DELETE"}`)
	assert.Error(t, err)
	_, err = ParseChange(`nope`)
	assert.Error(t, err)
}
