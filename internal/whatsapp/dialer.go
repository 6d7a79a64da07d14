// ABOUTME: Opens per-session whatsmeow device stores and builds transports over them
// ABOUTME: Purge removes a session's credential database from disk

package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/2389/afrik-gateway/internal/session"
)

// Dialer creates whatsmeow transports. It implements session.Dialer.
type Dialer struct {
	dir    string
	logger *slog.Logger
}

// NewDialer returns a dialer keeping credentials under dir.
func NewDialer(dir string, logger *slog.Logger) (*Dialer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Dialer{dir: dir, logger: logger.With("component", "whatsapp")}, nil
}

func (d *Dialer) dbPath(id string) string {
	return filepath.Join(d.dir, "instance-"+id+".db")
}

// Dial opens the device store of id, creating an unpaired device when none
// exists yet.
func (d *Dialer) Dial(ctx context.Context, id string, emit func(session.Event)) (session.Transport, error) {
	logger := d.logger.With("session", id)

	dsn := "file:" + d.dbPath(id) + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}
	db.SetMaxOpenConns(1)

	container := sqlstore.NewWithDB(db, "sqlite3", newLogger(logger.With("module", "store")))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrading device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, newLogger(logger.With("module", "client")))
	client.EnableAutoReconnect = false

	t := newTransport(client, db, emit, logger)
	client.AddEventHandler(t.handle)
	return t, nil
}

// Purge deletes the credential database of id.
func (d *Dialer) Purge(id string) error {
	base := d.dbPath(id)
	var errs []error
	for _, p := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
