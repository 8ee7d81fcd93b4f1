package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the journal file name inside the state directory.
const FileName = "history.db"

// Schema version tracking:
// 1 - events table with artifact fingerprints
const currentSchemaVersion = 1

// Event is one recorded lifecycle transition.
type Event struct {
	Seq                 int64     `json:"seq"`
	ID                  string    `json:"id"`
	Path                string    `json:"path"`
	Action              string    `json:"action"`
	FromStatus          string    `json:"from_status"`
	ToStatus            string    `json:"to_status"`
	Hash                string    `json:"hash,omitempty"`
	ArtifactFingerprint string    `json:"artifact_fingerprint,omitempty"`
	Message             string    `json:"message,omitempty"`
	Detail              string    `json:"detail,omitempty"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// Store is an open journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database at path and applies the
// schema. Safe to call on an existing journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database. Calling Close on a nil Store is a no-op.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends ev. ID and RecordedAt are filled in when empty; the
// assigned seq and ID are written back into the returned event.
func (s *Store) Record(ctx context.Context, ev Event) (Event, error) {
	if ev.Path == "" || ev.Action == "" {
		return ev, errors.New("record event: path and action are required")
	}
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return ev, fmt.Errorf("record event: %w", err)
		}
		ev.ID = id.String()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}
	ev.RecordedAt = ev.RecordedAt.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, path, action, from_status, to_status, hash, artifact_fingerprint, message, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.Path,
		ev.Action,
		ev.FromStatus,
		ev.ToStatus,
		ev.Hash,
		ev.ArtifactFingerprint,
		ev.Message,
		ev.Detail,
		ev.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ev, fmt.Errorf("record event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ev, fmt.Errorf("record event: %w", err)
	}
	ev.Seq = seq
	return ev, nil
}

// List returns events for path (all paths when empty) in seq order. With
// limit > 0 only the most recent limit events are returned, still in
// ascending order.
func (s *Store) List(ctx context.Context, path string, limit int) ([]Event, error) {
	query := `
		SELECT seq, id, path, action, from_status, to_status, hash,
		       artifact_fingerprint, message, detail, recorded_at
		FROM events`
	var args []any
	if path != "" {
		query += ` WHERE path = ?`
		args = append(args, path)
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var recordedAt string
		if err := rows.Scan(
			&ev.Seq, &ev.ID, &ev.Path, &ev.Action, &ev.FromStatus, &ev.ToStatus, &ev.Hash,
			&ev.ArtifactFingerprint, &ev.Message, &ev.Detail, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		ev.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("list events: seq %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	// Reverse into ascending seq order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// LastFingerprint returns the artifact fingerprint of the most recent
// event for path that carried one, or "" when none did.
func (s *Store) LastFingerprint(ctx context.Context, path string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx, `
		SELECT artifact_fingerprint FROM events
		WHERE path = ? AND artifact_fingerprint != ''
		ORDER BY seq DESC LIMIT 1
	`, path).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last fingerprint: %w", err)
	}
	return fp, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("history schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
