package migration

import (
	"context"
	"fmt"
	"strings"

	"qcgallery/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the factory and inspection tables for local
// development and tests. Production tables are owned by the inspection
// pipeline; the browser never writes to them.
type MigrationRunner struct {
	version         string
	factoryTable    string
	inspectionTable string
}

// NewRunner creates a new migration runner for the given table names
func NewRunner(factoryTable, inspectionTable string) *MigrationRunner {
	return &MigrationRunner{
		version:         "1.0.0",
		factoryTable:    factoryTable,
		inspectionTable: inspectionTable,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order. It is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	d := dialectFor(db.DriverName())

	if err := r.createSchemas(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create schemas")
	}
	if err := r.createFactoriesTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create factories table")
	}
	if err := r.createInspectionsTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create inspections table")
	}
	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}
	return nil
}

type dialect struct {
	postgres  bool
	textArray string
	timestamp string
	date      string
	double    string
}

func dialectFor(driver string) dialect {
	switch driver {
	case "postgres", "pgx":
		return dialect{postgres: true, textArray: "TEXT[]", timestamp: "TIMESTAMP", date: "DATE", double: "DOUBLE PRECISION"}
	default:
		return dialect{textArray: "TEXT", timestamp: "TEXT", date: "TEXT", double: "REAL"}
	}
}

// createSchemas creates the schema part of qualified Postgres table names
func (r *MigrationRunner) createSchemas(ctx context.Context, db *sqlx.DB, d dialect) error {
	if !d.postgres {
		return nil
	}
	for _, table := range []string{r.factoryTable, r.inspectionTable} {
		parts := strings.Split(table, ".")
		if len(parts) != 2 {
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, parts[0])); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) createFactoriesTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		factory_id TEXT PRIMARY KEY,
		region     TEXT,
		cameras    %s
	)`, r.factoryTable, d.textArray)
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createInspectionsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		inspection_id     TEXT PRIMARY KEY,
		factory_id        TEXT NOT NULL,
		camera_id         TEXT NOT NULL,
		"timestamp"       %s NOT NULL,
		image_path        TEXT NOT NULL,
		prediction        TEXT NOT NULL CHECK (prediction IN ('OK', 'KO')),
		confidence_score  %s NOT NULL,
		defect_type       TEXT,
		inference_time_ms INTEGER NOT NULL,
		model_version     TEXT,
		"date"            %s NOT NULL
	)`, r.inspectionTable, d.timestamp, d.double, d.date)
	_, err := db.ExecContext(ctx, query)
	return err
}

// createIndexes backs the page ordering and the common equality filters
func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	base := indexBase(r.inspectionTable)
	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_recent_idx ON %s ("timestamp" DESC, inspection_id DESC)`, base, r.inspectionTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_factory_idx ON %s (factory_id)`, base, r.inspectionTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_idx ON %s ("date")`, base, r.inspectionTable),
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func indexBase(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}
