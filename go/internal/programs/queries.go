package programs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/sqlutil"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

const programColumns = `id, title, subtitle, date, start_time, end_time`

const insertProgram = `
INSERT INTO programs (id, title, subtitle, date, start_time, end_time)
VALUES ($1, $2, $3, $4, $5, $6)`

const upsertProgram = `
INSERT INTO programs (id, title, subtitle, date, start_time, end_time)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    subtitle = EXCLUDED.subtitle,
    date = EXCLUDED.date,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    updated_at = now()`

const updateProgram = `
UPDATE programs
SET title = $2, subtitle = $3, date = $4, start_time = $5, end_time = $6, updated_at = now()
WHERE id = $1`

const insertSlot = `
INSERT INTO program_slots (program_id, id, position, title, speaker, duration_minutes, type, details, actual_duration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func programArgs(p models.Program) []any {
	return []any{p.ID, p.Title, p.Subtitle, p.Date, p.StartTime, sqlutil.ToNullString(p.EndTime)}
}

func (q *queries) insertProgram(ctx context.Context, p models.Program) error {
	if _, err := q.db.ExecContext(ctx, insertProgram, programArgs(p)...); err != nil {
		return fmt.Errorf("insert program: %w", err)
	}
	return nil
}

func (q *queries) upsertProgram(ctx context.Context, p models.Program) error {
	if _, err := q.db.ExecContext(ctx, upsertProgram, programArgs(p)...); err != nil {
		return fmt.Errorf("upsert program: %w", err)
	}
	return nil
}

func (q *queries) updateProgram(ctx context.Context, p models.Program) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateProgram, programArgs(p)...)
	if err != nil {
		return 0, fmt.Errorf("update program: %w", err)
	}
	return res.RowsAffected()
}

func (q *queries) deleteProgram(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete program: %w", err)
	}
	return res.RowsAffected()
}

// replaceSlots deletes every slot of the program and reinserts them with explicit positions.
func (q *queries) replaceSlots(ctx context.Context, programID string, slots []models.Slot) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM program_slots WHERE program_id = $1`, programID); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	for i, s := range slots {
		_, err := q.db.ExecContext(ctx, insertSlot,
			programID, s.ID, i, s.Title, s.Speaker, s.DurationMinutes, string(s.Type),
			sqlutil.ToNullString(s.Details), sqlutil.ToNullInt32(s.ActualDuration),
		)
		if err != nil {
			return fmt.Errorf("insert slot %s: %w", s.ID, err)
		}
	}
	return nil
}

func (q *queries) getProgram(ctx context.Context, id string) (models.Program, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id = $1`, id)
	p, err := scanProgram(row)
	if err != nil {
		return models.Program{}, err
	}
	slots, err := q.listSlots(ctx, []string{id})
	if err != nil {
		return models.Program{}, err
	}
	p.Slots = slots[id]
	if p.Slots == nil {
		p.Slots = []models.Slot{}
	}
	return p, nil
}

func (q *queries) listPrograms(ctx context.Context) ([]models.Program, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+programColumns+` FROM programs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var (
		out []models.Program
		ids []string
	)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}

	slots, err := q.listSlots(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Slots = slots[out[i].ID]
		if out[i].Slots == nil {
			out[i].Slots = []models.Slot{}
		}
	}
	return out, nil
}

// listSlots returns slots grouped by program id, each group in position order.
func (q *queries) listSlots(ctx context.Context, programIDs []string) (map[string][]models.Slot, error) {
	out := make(map[string][]models.Slot, len(programIDs))
	if len(programIDs) == 0 {
		return out, nil
	}

	rows, err := q.db.QueryContext(ctx, `
SELECT program_id, id, title, speaker, duration_minutes, type, details, actual_duration
FROM program_slots
WHERE program_id = ANY($1)
ORDER BY program_id, position`, pq.Array(programIDs))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			programID string
			s         models.Slot
			slotType  string
			details   sql.NullString
			actual    sql.NullInt32
		)
		if err := rows.Scan(&programID, &s.ID, &s.Title, &s.Speaker, &s.DurationMinutes, &slotType, &details, &actual); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		s.Type = models.SlotType(slotType)
		s.Details = sqlutil.FromNullString(details)
		s.ActualDuration = sqlutil.FromNullInt32(actual)
		out[programID] = append(out[programID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (models.Program, error) {
	var (
		p       models.Program
		endTime sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Subtitle, &p.Date, &p.StartTime, &endTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Program{}, ErrNotFound
		}
		return models.Program{}, fmt.Errorf("scan program: %w", err)
	}
	p.EndTime = sqlutil.FromNullString(endTime)
	return p, nil
}
