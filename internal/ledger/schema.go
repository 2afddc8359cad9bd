package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// schemaFiles holds the ledger's schema scripts, migrations/NNN_name.sql,
// numbered from 001 without gaps.
//
//go:embed migrations/*.sql
var schemaFiles embed.FS

// ErrSchemaTooNew is returned by Open when the ledger was written by a newer
// labbcat whose schema this one does not know.
var ErrSchemaTooNew = errors.New("ledger schema is newer than this labbcat")

type schemaStep struct {
	version int
	file    string
	sql     string
}

// schemaSteps reads the schema scripts from fsys, oldest first.
func schemaSteps(fsys fs.FS) ([]schemaStep, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	steps := make([]schemaStep, 0, len(names))
	for i, name := range names {
		file := path.Base(name)
		prefix, _, ok := strings.Cut(file, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version != i+1 {
			return nil, fmt.Errorf("schema script %s: expected %03d_<name>.sql", file, i+1)
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, schemaStep{version: version, file: file, sql: string(data)})
	}
	return steps, nil
}

// schemaVersion returns the version stamped in the database header; 0 for a
// new database.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// migrate applies the scripts in fsys that the database has not seen yet.
// Each script and its version stamp commit together.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	steps, err := schemaSteps(fsys)
	if err != nil {
		return err
	}
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > len(steps) {
		return fmt.Errorf("%w: version %d, expected at most %d", ErrSchemaTooNew, current, len(steps))
	}

	for _, step := range steps[current:] {
		if err := applyStep(ctx, db, step); err != nil {
			return fmt.Errorf("schema %s: %w", step.file, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, db *sql.DB, step schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.sql); err != nil {
		return err
	}
	// PRAGMA statements take no bind parameters
	if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(step.version)); err != nil {
		return err
	}
	return tx.Commit()
}
