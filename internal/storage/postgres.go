// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"kba-plugin/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrPluginNotFound = errors.New("plugin not found")

// Storage owns the kernel's connection and its bookkeeping tables.
type Storage struct {
	DB  *sql.DB
	now func() time.Time
}

// NewStorage opens the database at dsn and brings the host schema up to date.
func NewStorage(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	s := NewWithDB(db)
	if err := s.MigrateHostSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an open connection without touching the schema.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{
		DB: db,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// MigrateHostSchema creates the migration and plugin tables.
func (s *Storage) MigrateHostSchema() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(s.DB, &postgres.Config{MigrationsTable: "host_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply host schema: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

const pluginColumns = `id, name, version, active, installed_at, created_at, updated_at`

func scanPlugin(row interface{ Scan(...any) error }) (*model.Plugin, error) {
	var p model.Plugin
	var installedAt, updatedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Version, &p.Active, &installedAt, &p.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if installedAt.Valid {
		p.InstalledAt = &installedAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

// UpsertPlugin records a plugin under name, updating its version when it
// is already known.
func (s *Storage) UpsertPlugin(ctx context.Context, name, version string) (*model.Plugin, error) {
	now := s.now()
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO plugin (id, name, version, active, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, updated_at = $4
		RETURNING `+pluginColumns,
		uuid.New(), name, version, now)
	p, err := scanPlugin(row)
	if err != nil {
		return nil, fmt.Errorf("upsert plugin %s: %w", name, err)
	}
	return p, nil
}

func (s *Storage) GetPlugin(ctx context.Context, name string) (*model.Plugin, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+pluginColumns+` FROM plugin WHERE name = $1`, name)
	p, err := scanPlugin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get plugin %s: %w", name, err)
	}
	return p, nil
}

func (s *Storage) ListPlugins(ctx context.Context) ([]model.Plugin, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+pluginColumns+` FROM plugin ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()

	var plugins []model.Plugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plugin: %w", err)
		}
		plugins = append(plugins, *p)
	}
	return plugins, rows.Err()
}

// MarkInstalled stamps or clears installed_at. Uninstalling also deactivates.
func (s *Storage) MarkInstalled(ctx context.Context, name string, installed bool) error {
	var query string
	if installed {
		query = `UPDATE plugin SET installed_at = $2, updated_at = $2 WHERE name = $1`
	} else {
		query = `UPDATE plugin SET installed_at = NULL, active = FALSE, updated_at = $2 WHERE name = $1`
	}
	return s.execPlugin(ctx, name, query, name, s.now())
}

func (s *Storage) SetActive(ctx context.Context, name string, active bool) error {
	return s.execPlugin(ctx, name,
		`UPDATE plugin SET active = $2, updated_at = $3 WHERE name = $1`,
		name, active, s.now())
}

func (s *Storage) execPlugin(ctx context.Context, name, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update plugin %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plugin %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return nil
}
