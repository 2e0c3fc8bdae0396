package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gneuro/tgrelay/internal/delivery"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Options tune how the database is opened.
type Options struct {
	WAL         bool
	BusyTimeout int // milliseconds
}

// Store is a delivery audit log backed by SQLite. It implements
// delivery.Recorder and delivery.History.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ delivery.Recorder = (*Store)(nil)
	_ delivery.History  = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and migrates its
// schema. path may be ":memory:". The pool is limited to one connection
// since SQLite serialises writes.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if opts.WAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// RecordDelivery implements delivery.Recorder.
func (s *Store) RecordDelivery(ctx context.Context, r delivery.Report) error {
	at := r.StartedAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}

	id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, chat_id, segments, attempted, final, aborted, error, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.ChatID, r.Segments, r.Attempted(), r.Final().String(), r.Aborted, errText,
		int64(r.Duration), at.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record delivery: %w", err)
	}
	return nil
}

// Recent implements delivery.History.
func (s *Store) Recent(ctx context.Context, limit int) ([]delivery.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, segments, attempted, final, aborted, error, duration_ns, created_at
		 FROM deliveries ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []delivery.Entry
	for rows.Next() {
		var (
			e         delivery.Entry
			durNS     int64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Segments, &e.Attempted, &e.Final,
			&e.Aborted, &e.Error, &durNS, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan delivery: %w", err)
		}
		e.Duration = time.Duration(durNS)
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate deliveries: %w", err)
	}
	return out, nil
}

// DeleteBefore removes records created before cutoff and returns how many
// were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM deliveries WHERE created_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
