// Package audit provides an append-only SQLite-backed record of every
// Coco Table apply/tear/promote transition (spec §4.11). Diagnostic
// only: never read on the request-handling hot path, and a write
// failure here never blocks arbitration.
//
// Uses WAL mode for concurrent reads and crash-safe writes, the same
// shape as the teacher's internal/infra/sqlite.DB.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/tnidigan/userspace-resource-manager/internal/domain"
)

// Action names the kind of Coco Table transition a row records.
type Action string

const (
	ActionApply   Action = "apply"
	ActionTear    Action = "tear"
	ActionPromote Action = "promote"
)

// Entry is one coco_transitions row.
type Entry struct {
	Timestamp      time.Time
	ResourceID     domain.ResourceID
	ScopeQualifier int
	Handle         domain.Handle
	Action         Action
	Value          int64
}

// Log wraps a SQLite connection holding the coco_transitions table.
type Log struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/audit.db.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "audit.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *Log) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS coco_transitions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ts          INTEGER NOT NULL,
		resource_id INTEGER NOT NULL,
		scope       INTEGER NOT NULL,
		handle      INTEGER NOT NULL,
		action      TEXT NOT NULL,
		value       INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_coco_transitions_ts ON coco_transitions(ts)`)
	return err
}

// Close shuts down the underlying connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one transition row. Best-effort: the caller logs but
// never blocks arbitration on a write failure.
func (l *Log) Record(e Entry) error {
	_, err := l.db.Exec(
		`INSERT INTO coco_transitions (ts, resource_id, scope, handle, action, value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixMilli(), uint32(e.ResourceID), e.ScopeQualifier,
		int64(e.Handle), string(e.Action), e.Value,
	)
	return err
}

// Recent returns the most recent n transitions, newest first. The
// status CLI does not read the audit log; it queries the admin /status
// endpoint instead.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT ts, resource_id, scope, handle, action, value
		 FROM coco_transitions ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var resourceID uint32
		var action string
		var handle int64
		if err := rows.Scan(&ts, &resourceID, &e.ScopeQualifier, &handle, &action, &e.Value); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts)
		e.ResourceID = domain.ResourceID(resourceID)
		e.Handle = domain.Handle(handle)
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
