package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Ledger is the SQLite-backed task ledger.
type Ledger struct {
	db      *sql.DB
	closed  bool
	entries *sqliteEntries
}

// Open opens the ledger database, creating and migrating it as needed.
// The dsn can be a file path or ":memory:" for an in-memory database.
func Open(dsn string) (*Ledger, error) {
	connStr := dsn
	if !strings.Contains(dsn, "?") {
		connStr += "?"
	} else {
		connStr += "&"
	}
	connStr += "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db, schemaFiles); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}

	return &Ledger{db: db, entries: &sqliteEntries{exec: db}}, nil
}

// Entries returns the ledger operations outside any transaction.
func (l *Ledger) Entries() Entries {
	return l.entries
}

// Record adds an entry.
func (l *Ledger) Record(ctx context.Context, entry *Entry) error {
	return l.entries.Record(ctx, entry)
}

// Get returns the entry with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (*Entry, error) {
	return l.entries.Get(ctx, id)
}

// FindByThread returns the latest entry for a task on a server.
func (l *Ledger) FindByThread(ctx context.Context, serverURL, threadID string) (*Entry, error) {
	return l.entries.FindByThread(ctx, serverURL, threadID)
}

// List returns entries newest first.
func (l *Ledger) List(ctx context.Context, serverURL string) ([]*Entry, error) {
	return l.entries.List(ctx, serverURL)
}

// UpdateStatus records the latest polled status of a task.
func (l *Ledger) UpdateStatus(ctx context.Context, id, status string, percentComplete int, running bool) error {
	return l.entries.UpdateStatus(ctx, id, status, percentComplete, running)
}

// Delete removes an entry.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.entries.Delete(ctx, id)
}

// Prune deletes finished entries last updated before the given time.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int64, error) {
	return l.entries.Prune(ctx, before)
}

// WithTx executes a function within a transaction. The transaction is
// rolled back if fn returns an error.
func (l *Ledger) WithTx(ctx context.Context, fn func(Entries) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteEntries{exec: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// dbExecutor works with both *sql.DB and *sql.Tx
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type sqliteEntries struct {
	exec dbExecutor
}

const entryColumns = `id, server_url, thread_id, kind, description, status, percent_complete, running, created_at, updated_at`

func (r *sqliteEntries) Record(ctx context.Context, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}

	query := `INSERT INTO tasks (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec.ExecContext(ctx, query,
		entry.ID,
		entry.ServerURL,
		entry.ThreadID,
		entry.Kind,
		entry.Description,
		entry.Status,
		entry.PercentComplete,
		entry.Running,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("ledger entry %s already exists", entry.ID)
		}
		return fmt.Errorf("failed to record task: %w", err)
	}
	return nil
}

func (r *sqliteEntries) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM tasks WHERE id = ?`, id)
	return scanEntry(row)
}

func (r *sqliteEntries) FindByThread(ctx context.Context, serverURL, threadID string) (*Entry, error) {
	row := r.exec.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM tasks
		WHERE server_url = ? AND thread_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, serverURL, threadID)
	return scanEntry(row)
}

func (r *sqliteEntries) List(ctx context.Context, serverURL string) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM tasks`
	var args []interface{}
	if serverURL != "" {
		query += ` WHERE server_url = ?`
		args = append(args, serverURL)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return entries, nil
}

func (r *sqliteEntries) UpdateStatus(ctx context.Context, id, status string, percentComplete int, running bool) error {
	if percentComplete < 0 || percentComplete > 100 {
		return &ValidationError{Field: "percent_complete", Message: "must be between 0 and 100"}
	}

	result, err := r.exec.ExecContext(ctx, `
		UPDATE tasks SET status = ?, percent_complete = ?, running = ?, updated_at = ?
		WHERE id = ?
	`, status, percentComplete, running, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteEntries) Delete(ctx context.Context, id string) error {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteEntries) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.exec.ExecContext(ctx, `
		DELETE FROM tasks WHERE running = 0 AND updated_at < ?
	`, formatTime(before.UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to prune tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune tasks: %w", err)
	}
	return n, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var entry Entry
	var createdAt, updatedAt string

	err := s.Scan(
		&entry.ID,
		&entry.ServerURL,
		&entry.ThreadID,
		&entry.Kind,
		&entry.Description,
		&entry.Status,
		&entry.PercentComplete,
		&entry.Running,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		entry.UpdatedAt = t
	}
	return &entry, nil
}

// formatTime stores times in UTC with a fixed-width fraction, so text
// comparison orders them correctly.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
