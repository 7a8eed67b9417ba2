// Package audit provides a persistent journal of gating operations using SQLite.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// EventKind distinguishes journal entries.
type EventKind string

const (
	EventGate   EventKind = "gate"
	EventRemove EventKind = "remove"
)

// Event is one recorded gating operation.
type Event struct {
	ID           int64     `json:"id"`
	Kind         EventKind `json:"kind"`
	LabelID      int       `json:"label_id"`
	LabelName    string    `json:"label_name"`
	ParentID     int       `json:"parent_id"`
	Channel      string    `json:"channel"`
	Threshold    float64   `json:"threshold"`
	IntensityKey string    `json:"intensity_key"`
	Override     bool      `json:"override"`
	Step         int       `json:"step"`
	NumCells     int       `json:"num_cells"`
	NumAssigned  int       `json:"num_assigned"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store provides persistent storage for gate events using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based audit store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS gate_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		label_id INTEGER NOT NULL,
		label_name TEXT NOT NULL,
		parent_id INTEGER DEFAULT 0,
		channel TEXT DEFAULT '',
		threshold REAL DEFAULT 0,
		intensity_key TEXT DEFAULT '',
		override INTEGER DEFAULT 0,
		step INTEGER DEFAULT 0,
		num_cells INTEGER DEFAULT 0,
		num_assigned INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gate_events_label ON gate_events(label_id);
	CREATE INDEX IF NOT EXISTS idx_gate_events_kind ON gate_events(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an event to the journal and returns its id.
func (s *Store) Record(ev *Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO gate_events (kind, label_id, label_name, parent_id, channel, threshold, intensity_key, override, step, num_cells, num_assigned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(ev.Kind),
		ev.LabelID,
		ev.LabelName,
		ev.ParentID,
		ev.Channel,
		ev.Threshold,
		ev.IntensityKey,
		boolToInt(ev.Override),
		ev.Step,
		ev.NumCells,
		ev.NumAssigned,
		ev.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, kind, label_id, label_name, parent_id, channel, threshold, intensity_key, override, step, num_cells, num_assigned, created_at
		FROM gate_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsByLabel returns all events of one label, oldest first.
func (s *Store) ListEventsByLabel(labelID int) ([]*Event, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, label_id, label_name, parent_id, channel, threshold, intensity_key, override, step, num_cells, num_assigned, created_at
		FROM gate_events
		WHERE label_id = ?
		ORDER BY id ASC
	`, labelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var ev Event
		var kind string
		var override int
		var createdAtStr string

		err := rows.Scan(
			&ev.ID,
			&kind,
			&ev.LabelID,
			&ev.LabelName,
			&ev.ParentID,
			&ev.Channel,
			&ev.Threshold,
			&ev.IntensityKey,
			&override,
			&ev.Step,
			&ev.NumCells,
			&ev.NumAssigned,
			&createdAtStr,
		)
		if err != nil {
			return nil, err
		}

		ev.Kind = EventKind(kind)
		ev.Override = override != 0
		ev.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
