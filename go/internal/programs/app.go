package programs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// Store defines what the app layer needs from persistence
type Store interface {
	List(ctx context.Context) ([]models.Program, error)
	Get(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, p models.Program) (*models.Program, error)
	Update(ctx context.Context, p models.Program) error
	Upsert(ctx context.Context, p models.Program) error
	Delete(ctx context.Context, id string) error
}

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("programs: invalid program")

// App handles program business logic
type App struct {
	store Store
	now   func() time.Time
}

// NewApp creates a new programs App
func NewApp(store Store) *App {
	return &App{store: store, now: time.Now}
}

// List returns every program, newest first.
func (a *App) List(ctx context.Context) ([]models.Program, error) {
	programs, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return programs, nil
}

// Get retrieves a program by id
func (a *App) Get(ctx context.Context, id string) (*models.Program, error) {
	p, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get program %s: %w", id, err)
	}
	return p, nil
}

// Create validates and stores a new program
func (a *App) Create(ctx context.Context, p models.Program) (*models.Program, error) {
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	created, err := a.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	log.Info().Str("program_id", p.ID).Str("title", p.Title).Msg("program created")
	return created, nil
}

// Update validates and replaces an existing program
func (a *App) Update(ctx context.Context, p models.Program) error {
	if err := Validate(p); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := a.store.Update(ctx, p); err != nil {
		return err
	}
	log.Debug().Str("program_id", p.ID).Int("slots", len(p.Slots)).Msg("program updated")
	return nil
}

// Save validates and creates or replaces the program
func (a *App) Save(ctx context.Context, p models.Program) error {
	if err := Validate(p); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := a.store.Upsert(ctx, p); err != nil {
		return err
	}
	log.Debug().Str("program_id", p.ID).Int("slots", len(p.Slots)).Msg("program saved")
	return nil
}

// Duplicate copies a program under a new id. Every slot gets a new id and the title
// is suffixed with " (Copy)".
func (a *App) Duplicate(ctx context.Context, id string) (*models.Program, error) {
	src, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get program %s: %w", id, err)
	}

	dup := src.Clone()
	dup.ID = uuid.NewString()
	dup.Title = src.Title + " (Copy)"
	for i := range dup.Slots {
		dup.Slots[i].ID = uuid.NewString()
	}
	return a.Create(ctx, dup)
}

// Delete removes a program and returns the program the caller should load next: the first
// remaining one, or a fresh placeholder dated today when none remain.
func (a *App) Delete(ctx context.Context, id string) (models.Program, error) {
	if err := a.store.Delete(ctx, id); err != nil {
		return models.Program{}, fmt.Errorf("failed to delete program %s: %w", id, err)
	}
	log.Info().Str("program_id", id).Msg("program deleted")

	remaining, err := a.store.List(ctx)
	if err != nil {
		return models.Program{}, fmt.Errorf("failed to list programs: %w", err)
	}
	if len(remaining) > 0 {
		return remaining[0], nil
	}
	return models.NewProgram(a.now()), nil
}

// Validate checks the structural rules every stored program must satisfy.
func Validate(p models.Program) error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalid)
	}
	if p.Date != "" {
		if _, err := time.Parse(models.DateLayout, p.Date); err != nil {
			return fmt.Errorf("%w: date %q", ErrInvalid, p.Date)
		}
	}
	if _, err := clock.ParseTimeOfDay(p.StartTime); err != nil {
		return fmt.Errorf("%w: start time: %v", ErrInvalid, err)
	}
	if p.EndTime != "" {
		if _, err := clock.ParseTimeOfDay(p.EndTime); err != nil {
			return fmt.Errorf("%w: end time: %v", ErrInvalid, err)
		}
	}

	seen := make(map[string]struct{}, len(p.Slots))
	for i, s := range p.Slots {
		if s.ID == "" {
			return fmt.Errorf("%w: slot %d has no id", ErrInvalid, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate slot id %s", ErrInvalid, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.DurationMinutes < 0 {
			return fmt.Errorf("%w: slot %s has negative duration", ErrInvalid, s.ID)
		}
	}
	return nil
}
