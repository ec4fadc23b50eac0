// Package persistence stores the simulation's state record, event log and
// run metadata in SQLite, and writes compressed snapshot archives.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/engine"
)

// ErrNoState is returned by LoadState when nothing has been saved yet.
var ErrNoState = errors.New("no saved state")

// DB wraps a SQLite connection for simulation persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		at INTEGER NOT NULL,
		time TEXT NOT NULL,
		category TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL,
		UNIQUE (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveState replaces the stored state record.
func (db *DB) SaveState(rec engine.StateRecord) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM state"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO state (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	var size uint64
	for _, k := range rec.Keys() {
		v := rec[k]
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("insert %s: %w", k, err)
		}
		size += uint64(len(k) + len(v))
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("state saved", "keys", humanize.Comma(int64(len(rec))), "size", humanize.Bytes(size))
	return nil
}

type stateRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// LoadState reads the stored state record.
func (db *DB) LoadState() (engine.StateRecord, error) {
	var rows []stateRow
	if err := db.conn.Select(&rows, "SELECT key, value FROM state"); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoState
	}
	rec := make(engine.StateRecord, len(rows))
	for _, r := range rows {
		rec[r.Key] = r.Value
	}
	return rec, nil
}

// SaveEvents appends events for a run. Events already stored are skipped.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		meta := "{}"
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("event %d meta: %w", e.Seq, err)
			}
			meta = string(b)
		}
		_, err := tx.Exec(`INSERT OR IGNORE INTO events
			(run_id, seq, at, time, category, agent_id, description, meta_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Seq, e.At, e.Time, e.Category, uint64(e.AgentID), e.Description, meta,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Seq         uint64 `db:"seq"`
	At          int64  `db:"at"`
	Time        string `db:"time"`
	Category    string `db:"category"`
	AgentID     uint64 `db:"agent_id"`
	Description string `db:"description"`
	MetaJSON    string `db:"meta_json"`
}

func (r eventRow) event() engine.Event {
	e := engine.Event{
		Seq:         r.Seq,
		At:          r.At,
		Time:        r.Time,
		Category:    r.Category,
		AgentID:     agents.AgentID(r.AgentID),
		Description: r.Description,
	}
	if r.MetaJSON != "" && r.MetaJSON != "{}" {
		if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
			slog.Warn("event meta unreadable", "seq", r.Seq, "error", err)
		}
	}
	return e
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, at, time, category, agent_id, description, meta_json
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = r.event()
	}
	return out, nil
}

// AgentEvents returns the most recent N events about one agent.
func (db *DB) AgentEvents(id agents.AgentID, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, at, time, category, agent_id, description, meta_json
		 FROM events WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		uint64(id), limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = r.event()
	}
	return out, nil
}

// SaveMeta stores a key-value pair in the run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. ok is false when the key is unset.
func (db *DB) GetMeta(key string) (string, bool, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SaveWorldState performs a full save: the state record, the events since
// the last save, and the save time.
func (db *DB) SaveWorldState(rec engine.StateRecord, events []engine.Event) error {
	runID := rec.RunID()
	minute, _ := rec.Minute()
	slog.Info("saving simulation state", "run", runID, "events", len(events))

	if err := db.SaveState(rec); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := db.SaveEvents(runID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_save_minute", fmt.Sprintf("%d", minute)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("run_id", runID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}
