package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patrickudo2004/kairon/go/internal/dbconfig"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

const defaultSnapshot = "go/internal/assets/programs.json"

func main() {
	path := defaultSnapshot
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var snapshot []models.Program
	if err := json.Unmarshal(data, &snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", cfg.Redacted(), err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert each program with its slots and count
	var (
		total    = len(snapshot)
		inserted int
		skipped  int
		errs     int
		slots    int
	)

	for _, p := range snapshot {
		ok, err := seedProgram(ctx, pool, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting program %s: %v\n", p.ID, err)
			errs++
			continue
		}
		if ok {
			inserted++
			slots += len(p.Slots)
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Programs seed complete: %d total, %d inserted (%d slots), %d skipped, %d errors\n",
		total, inserted, slots, skipped, errs,
	)
}

// seedProgram inserts p and its slots in one transaction. Existing programs are left alone.
func seedProgram(ctx context.Context, pool *pgxpool.Pool, p models.Program) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var endTime *string
	if p.EndTime != "" {
		endTime = &p.EndTime
	}

	cmdTag, err := tx.Exec(ctx, `
        INSERT INTO programs (id, title, subtitle, date, start_time, end_time)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO NOTHING
    `,
		p.ID, p.Title, p.Subtitle, p.Date, p.StartTime, endTime,
	)
	if err != nil {
		return false, err
	}
	if cmdTag.RowsAffected() == 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for i, s := range p.Slots {
		var details *string
		if s.Details != "" {
			details = &s.Details
		}
		batch.Queue(`
            INSERT INTO program_slots (
              program_id, id, position, title, speaker,
              duration_minutes, type, details, actual_duration
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        `,
			p.ID, s.ID, i, s.Title, s.Speaker,
			s.DurationMinutes, string(s.Type), details, s.ActualDuration,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("insert slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
