// Package migration runs versioned schema changes contributed by plugins and
// keeps track of which ones have been applied.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Execer is the part of *sql.DB and *sql.Tx a step needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Step is one versioned schema change.
//
// Update must be idempotent. UpdateDestructive holds changes that break
// older code (dropping columns and the like) and runs separately.
type Step interface {
	CreationTimestamp() int64
	Update(ctx context.Context, conn Execer) error
	UpdateDestructive(ctx context.Context, conn Execer) error
}

// Source groups the steps of one plugin.
type Source struct {
	Name  string
	Steps []Step
}

// NewSource returns a source with its steps ordered by creation timestamp.
func NewSource(name string, steps ...Step) Source {
	s := Source{Name: name, Steps: append([]Step(nil), steps...)}
	sort.SliceStable(s.Steps, func(i, j int) bool {
		return s.Steps[i].CreationTimestamp() < s.Steps[j].CreationTimestamp()
	})
	return s
}

// Add appends a step, keeping creation-timestamp order.
func (s *Source) Add(step Step) {
	*s = NewSource(s.Name, append(s.Steps, step)...)
}

// ClassName identifies a step in the migration table.
func ClassName(source string, step Step) string {
	return fmt.Sprintf("%s\\Migration%d", source, step.CreationTimestamp())
}
