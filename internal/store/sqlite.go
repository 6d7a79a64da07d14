// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Keeps the instance registry and lifecycle events with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	defaultEventLimit = 50
	maxEventLimit     = 500
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// Parent directories are created if needed. ":memory:" is accepted for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS instances (
			id          TEXT PRIMARY KEY,
			last_status  TEXT NOT NULL DEFAULT '',
			last_error   TEXT NOT NULL DEFAULT '',
			connected_at TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS session_events (
			event_id    TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL,
			kind        TEXT NOT NULL,
			detail      TEXT,
			created_at  TEXT NOT NULL,

			CHECK (kind IN (
				'init',
				'restored',
				'pairing',
				'ready',
				'disconnected',
				'logged_out',
				'stopped',
				'setup_failed'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_session_events_instance
			ON session_events(instance_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// SaveInstance registers id, keeping created_at of an existing row.
func (s *SQLiteStore) SaveInstance(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, now, now)
	if err != nil {
		return fmt.Errorf("saving instance: %w", err)
	}
	s.logger.Debug("saved instance", "id", id)
	return nil
}

func (s *SQLiteStore) UpdateInstanceStatus(ctx context.Context, id, status, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE instances SET last_status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, status, lastError, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating instance status: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) MarkConnected(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE instances SET connected_at = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("marking instance connected: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const instanceColumns = `id, last_status, last_error, created_at, updated_at, connected_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*Instance, error) {
	var inst Instance
	var createdAt, updatedAt string
	var connectedAt sql.NullString

	if err := row.Scan(&inst.ID, &inst.LastStatus, &inst.LastError, &createdAt, &updatedAt, &connectedAt); err != nil {
		return nil, err
	}

	var err error
	if inst.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if inst.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if connectedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, connectedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing connected_at: %w", err)
		}
		inst.ConnectedAt = &t
	}
	return &inst, nil
}

// GetInstance returns ErrNotFound if id is not registered.
func (s *SQLiteStore) GetInstance(ctx context.Context, id string) (*Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying instance: %w", err)
	}
	return inst, nil
}

// ListInstances returns every registered instance, oldest first.
func (s *SQLiteStore) ListInstances(ctx context.Context) ([]*Instance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+instanceColumns+` FROM instances ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	defer rows.Close()

	var instances []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instances: %w", err)
	}
	return instances, nil
}

// DeleteInstance returns ErrNotFound if id is not registered.
func (s *SQLiteStore) DeleteInstance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	s.logger.Debug("deleted instance", "id", id)
	return nil
}

// AppendEvent fills in ID and CreatedAt when empty.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_events (event_id, instance_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID, event.InstanceID, string(event.Kind), nullString(event.Detail), formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListEvents clamps limit to [1, 500], defaulting to 50.
func (s *SQLiteStore) ListEvents(ctx context.Context, instanceID string, limit int) ([]*Event, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, instance_id, kind, detail, created_at
		FROM session_events
		WHERE instance_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var kind, createdAt string
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.InstanceID, &kind, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Detail = detail.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session events: %w", err)
	}
	return events, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultEventLimit
	}
	return min(limit, maxEventLimit)
}

// Compile-time check that SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
