// internal/migration/runner.go
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"

	"kba-plugin/internal/metrics"
)

// Mode selects which hook of a step the runner executes.
type Mode string

const (
	ModeUpdate      Mode = "update"
	ModeDestructive Mode = "destructive"
)

func (m Mode) column() string {
	if m == ModeDestructive {
		return "update_destructive_at"
	}
	return "update_at"
}

// Runner applies the steps of a source against a database and records the
// outcome in the migration table. It does not retry: the first failing step
// stops the run.
type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Sync records every step of src that is not yet known.
func (r *Runner) Sync(ctx context.Context, src Source) error {
	for _, step := range src.Steps {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO migration (class, creation_timestamp) VALUES ($1, $2) ON CONFLICT (class) DO NOTHING`,
			ClassName(src.Name, step), step.CreationTimestamp())
		if err != nil {
			return fmt.Errorf("sync migration %s: %w", ClassName(src.Name, step), err)
		}
	}
	return nil
}

// Migrate runs the pending Update hooks of src and returns how many ran.
func (r *Runner) Migrate(ctx context.Context, src Source) (int, error) {
	return r.run(ctx, src, ModeUpdate)
}

// MigrateDestructive runs pending UpdateDestructive hooks of steps whose
// Update hook already ran.
func (r *Runner) MigrateDestructive(ctx context.Context, src Source) (int, error) {
	return r.run(ctx, src, ModeDestructive)
}

func (r *Runner) run(ctx context.Context, src Source, mode Mode) (int, error) {
	if len(src.Steps) == 0 {
		return 0, nil
	}
	if err := r.Sync(ctx, src); err != nil {
		return 0, err
	}

	pending, err := r.pending(ctx, src, mode)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, step := range src.Steps {
		class := ClassName(src.Name, step)
		if !pending[class] {
			continue
		}

		if mode == ModeDestructive {
			err = step.UpdateDestructive(ctx, r.db)
		} else {
			err = step.Update(ctx, r.db)
		}
		if err != nil {
			metrics.MigrationFailures.WithLabelValues(src.Name, string(mode)).Inc()
			if _, recErr := r.db.ExecContext(ctx, `UPDATE migration SET message = $2 WHERE class = $1`, class, err.Error()); recErr != nil {
				log.Printf("[Migration] Failed to record error for %s: %v", class, recErr)
			}
			return executed, fmt.Errorf("migration %s (%s): %w", class, mode, err)
		}

		query := fmt.Sprintf(`UPDATE migration SET %s = NOW(), message = NULL WHERE class = $1`, mode.column())
		if _, err := r.db.ExecContext(ctx, query, class); err != nil {
			return executed, fmt.Errorf("mark migration %s: %w", class, err)
		}
		metrics.MigrationSteps.WithLabelValues(src.Name, string(mode)).Inc()
		log.Printf("[Migration] %s executed (%s)", class, mode)
		executed++
	}
	return executed, nil
}

func (r *Runner) pending(ctx context.Context, src Source, mode Mode) (map[string]bool, error) {
	classes := make([]string, len(src.Steps))
	for i, step := range src.Steps {
		classes[i] = ClassName(src.Name, step)
	}

	query := fmt.Sprintf(`SELECT class FROM migration WHERE class = ANY($1) AND %s IS NULL`, mode.column())
	if mode == ModeDestructive {
		query += ` AND update_at IS NOT NULL`
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(classes))
	if err != nil {
		return nil, fmt.Errorf("load pending migrations: %w", err)
	}
	defer rows.Close()

	pending := make(map[string]bool)
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("scan pending migration: %w", err)
		}
		pending[class] = true
	}
	return pending, rows.Err()
}

// likeEscaper quotes the LIKE wildcards of a plugin name.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Status describes one recorded step.
type Status struct {
	Class              string
	CreationTimestamp  int64
	Updated            bool
	UpdatedDestructive bool
	Message            *string
}

// Statuses lists the recorded steps of src in creation-timestamp order.
func (r *Runner) Statuses(ctx context.Context, src Source) ([]Status, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT class, creation_timestamp, update_at IS NOT NULL, update_destructive_at IS NOT NULL, message
		FROM migration WHERE class LIKE $1 ORDER BY creation_timestamp`,
		likeEscaper.Replace(src.Name)+`\\%`)
	if err != nil {
		return nil, fmt.Errorf("load migration status: %w", err)
	}
	defer rows.Close()

	var out []Status
	for rows.Next() {
		var s Status
		var msg sql.NullString
		if err := rows.Scan(&s.Class, &s.CreationTimestamp, &s.Updated, &s.UpdatedDestructive, &msg); err != nil {
			return nil, fmt.Errorf("scan migration status: %w", err)
		}
		if msg.Valid {
			s.Message = &msg.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
