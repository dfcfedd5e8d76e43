// Package persistence provides SQL storage for archived scorelogs and the
// load log. SQLite by default, PostgreSQL when the DSN asks for it.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/talgya/scorelog-viewer/internal/loader"
	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

// ErrNotFound is returned when no archived scorelog has the given id.
var ErrNotFound = errors.New("scorelog not found")

// DB wraps a SQL connection for the scorelog archive.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates the archive. A DSN starting with postgres:// or
// postgresql:// uses PostgreSQL; anything else is a SQLite file path.
func Open(dsn string) (*DB, error) {
	driver, source := "sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, source = "postgres", dsn
	}

	conn, err := sqlx.Open(driver, source)
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
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scorelogs (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			tag_count INTEGER NOT NULL,
			imported_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS load_log (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			ok INTEGER NOT NULL,
			status_code INTEGER NOT NULL,
			message TEXT NOT NULL,
			tag_count INTEGER NOT NULL,
			unparseable INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			loaded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_load_log_loaded_at ON load_log(loaded_at)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// ── Archive ──────────────────────────────────────────────────────────────

// ScorelogInfo describes one archived scorelog without its body.
type ScorelogInfo struct {
	ID         string    `db:"id" json:"id"`
	TagCount   int       `db:"tag_count" json:"tag_count"`
	ImportedAt time.Time `db:"imported_at" json:"imported_at"`
}

// ImportScorelog stores body under id, replacing any previous import.
// The body must parse as a scorelog; its tag count is stored alongside.
func (db *DB) ImportScorelog(ctx context.Context, id string, body []byte) (ScorelogInfo, error) {
	p, err := scorelog.Parse(body)
	if err != nil {
		return ScorelogInfo{}, fmt.Errorf("import %s: %w", id, err)
	}
	info := ScorelogInfo{ID: id, TagCount: p.Len(), ImportedAt: time.Now().UTC()}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return ScorelogInfo{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM scorelogs WHERE id = ?"), id); err != nil {
		return ScorelogInfo{}, err
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO scorelogs (id, body, tag_count, imported_at) VALUES (?, ?, ?, ?)"),
		info.ID, string(body), info.TagCount, info.ImportedAt,
	)
	if err != nil {
		return ScorelogInfo{}, fmt.Errorf("insert scorelog %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return ScorelogInfo{}, err
	}
	slog.Info("scorelog imported", "id", id, "tags", info.TagCount)
	return info, nil
}

// Scorelog returns the raw body archived under id.
func (db *DB) Scorelog(ctx context.Context, id string) ([]byte, error) {
	var body string
	err := db.conn.GetContext(ctx, &body, db.conn.Rebind("SELECT body FROM scorelogs WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// ListScorelogs returns all archived scorelogs ordered by id.
func (db *DB) ListScorelogs(ctx context.Context) ([]ScorelogInfo, error) {
	var out []ScorelogInfo
	err := db.conn.SelectContext(ctx, &out, "SELECT id, tag_count, imported_at FROM scorelogs ORDER BY id")
	return out, err
}

// Fetch serves archived bodies to the loader.
func (db *DB) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	body, err := db.Scorelog(ctx, sourceID)
	if err != nil {
		return nil, &loader.LoadError{SourceID: sourceID, Cause: err}
	}
	return body, nil
}

// ── Load log ─────────────────────────────────────────────────────────────

// LoadRecord is one row of the load log.
type LoadRecord struct {
	ID          string    `db:"id" json:"id"`
	SourceID    string    `db:"source_id" json:"source_id"`
	OK          bool      `db:"ok" json:"ok"`
	StatusCode  int       `db:"status_code" json:"status_code,omitempty"`
	Message     string    `db:"message" json:"message,omitempty"`
	TagCount    int       `db:"tag_count" json:"tag_count"`
	Unparseable bool      `db:"unparseable" json:"unparseable,omitempty"`
	DurationMS  int64     `db:"duration_ms" json:"duration_ms"`
	LoadedAt    time.Time `db:"loaded_at" json:"loaded_at"`
}

// RecordLoad appends a load attempt to the log.
func (db *DB) RecordLoad(ctx context.Context, a loader.Attempt) error {
	_, err := db.conn.ExecContext(ctx,
		db.conn.Rebind(`INSERT INTO load_log
			(id, source_id, ok, status_code, message, tag_count, unparseable, duration_ms, loaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), a.SourceID, boolInt(a.OK), a.StatusCode, a.Message,
		a.TagCount, boolInt(a.Unparseable), a.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record load %s: %w", a.SourceID, err)
	}
	return nil
}

// RecentLoads returns the most recent N load attempts, newest first.
func (db *DB) RecentLoads(ctx context.Context, limit int) ([]LoadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []struct {
		LoadRecord
		OKInt          int `db:"ok_int"`
		UnparseableInt int `db:"unparseable_int"`
	}
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`SELECT
			id, source_id, ok AS ok_int, status_code, message, tag_count,
			unparseable AS unparseable_int, duration_ms, loaded_at
		FROM load_log ORDER BY loaded_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}

	out := make([]LoadRecord, len(rows))
	for i, r := range rows {
		out[i] = r.LoadRecord
		out[i].OK = r.OKInt != 0
		out[i].Unparseable = r.UnparseableInt != 0
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
