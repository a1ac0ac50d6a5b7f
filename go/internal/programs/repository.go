package programs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/sqlutil"
)

// ErrNotFound is returned when no program has the requested id.
var ErrNotFound = errors.New("programs: not found")

// Repository implements program persistence on Postgres.
// Every write replaces the program's slots wholesale inside one transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to Postgres with the lib/pq driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func txQueries(tx *sql.Tx) *queries {
	return newQueries(tx)
}

// List returns every program, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Program, error) {
	return newQueries(r.db).listPrograms(ctx)
}

// Get returns a program with its slots in schedule order.
func (r *Repository) Get(ctx context.Context, id string) (*models.Program, error) {
	p, err := newQueries(r.db).getProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new program. The id must not exist yet.
func (r *Repository) Create(ctx context.Context, p models.Program) (*models.Program, error) {
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		if err := q.insertProgram(ctx, p); err != nil {
			return err
		}
		return q.replaceSlots(ctx, p.ID, p.Slots)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	out := p.Clone()
	return &out, nil
}

// Update replaces an existing program and all of its slots.
func (r *Repository) Update(ctx context.Context, p models.Program) error {
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		n, err := q.updateProgram(ctx, p)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return q.replaceSlots(ctx, p.ID, p.Slots)
	})
	if err != nil {
		return fmt.Errorf("failed to update program: %w", err)
	}
	return nil
}

// Upsert creates the program or replaces it if it already exists.
func (r *Repository) Upsert(ctx context.Context, p models.Program) error {
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		if err := q.upsertProgram(ctx, p); err != nil {
			return err
		}
		return q.replaceSlots(ctx, p.ID, p.Slots)
	})
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	return nil
}

// Delete removes a program; its slots cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	n, err := newQueries(r.db).deleteProgram(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete program: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
