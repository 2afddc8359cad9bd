// Package ledger keeps a local record of the server tasks the labbcat CLI
// has started (searches, uploads, layer generation), so they can be listed,
// resumed, and released later. It records task bookkeeping only; no
// annotation data is ever stored.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("ledger entry not found")

// ValidationError describes an invalid entry field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ledger entry: %s: %s", e.Field, e.Message)
}

// Kinds of server task.
const (
	KindSearch        = "search"
	KindUpload        = "upload"
	KindGenerateLayer = "generate-layer"
)

// ValidKinds contains all valid entry kinds
var ValidKinds = []string{KindSearch, KindUpload, KindGenerateLayer}

// Entry is one server task started from this machine.
type Entry struct {
	ID        string `json:"id"` // uuid, assigned by Record if empty
	ServerURL string `json:"server_url"`
	ThreadID  string `json:"thread_id"`
	Kind      string `json:"kind"`
	// Description is the search pattern JSON, file name, or layer ID.
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status"`
	PercentComplete int       `json:"percent_complete"`
	Running         bool      `json:"running"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks if the Entry has valid field values
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ServerURL) == "" {
		return &ValidationError{Field: "server_url", Message: "is required"}
	}
	if strings.TrimSpace(e.ThreadID) == "" {
		return &ValidationError{Field: "thread_id", Message: "is required"}
	}
	if !isValidKind(e.Kind) {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("must be one of %s", strings.Join(ValidKinds, ", "))}
	}
	if e.PercentComplete < 0 || e.PercentComplete > 100 {
		return &ValidationError{Field: "percent_complete", Message: "must be between 0 and 100"}
	}
	return nil
}

func isValidKind(kind string) bool {
	for _, k := range ValidKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Entries is the set of ledger operations, available both directly on a
// Ledger and inside a transaction.
type Entries interface {
	// Record adds an entry, assigning an ID and timestamps where unset.
	Record(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	// FindByThread returns the latest entry for a task on a server.
	FindByThread(ctx context.Context, serverURL, threadID string) (*Entry, error)
	// List returns entries newest first. An empty serverURL lists all servers.
	List(ctx context.Context, serverURL string) ([]*Entry, error)
	UpdateStatus(ctx context.Context, id, status string, percentComplete int, running bool) error
	Delete(ctx context.Context, id string) error
	// Prune deletes finished entries last updated before the given time and
	// returns how many were deleted.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

const (
	// DefaultDir is the directory under home holding the ledger
	DefaultDir = ".labbcat"
	// DefaultFileName is the ledger database file name
	DefaultFileName = "tasks.db"
)

// DefaultPath returns ~/.labbcat/tasks.db, creating the directory if needed.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, DefaultDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return filepath.Join(dir, DefaultFileName), nil
}
