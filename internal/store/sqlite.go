// internal/store/sqlite.go
//
// SQLite-backed Store.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Upserting one JSON snapshot row per session.
//
// In-progress cards survive a restart; finished sessions are pruned like any other.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/game"
)

//go:embed migrations/*.sql
var migrations embed.FS

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the database at path and migrates it.
func OpenSQLite(path string) (Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

/**
 * openDB opens (and creates if missing) a SQLite database file.
 *
 * - Ensures parent directory exists for relative paths (e.g. ./data/bingo.db).
 * - Configures busy timeout and WAL journaling mode.
 */
func openDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * migrate applies the embedded migrations in lexical order.
 *
 * - Uses a _migrations table to track applied files.
 * - Each file runs in its own transaction together with its _migrations row.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		name := strings.TrimPrefix(f, "migrations/")
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("applied")
	}
	return nil
}

// Save upserts the session's snapshot.
func (s *sqliteStore) Save(ctx context.Context, sess *game.Session) error {
	snap := sess.Snapshot()
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, category, status, daily_date, snapshot, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            category   = excluded.category,
            status     = excluded.status,
            daily_date = excluded.daily_date,
            snapshot   = excluded.snapshot,
            updated_at = excluded.updated_at`,
		snap.ID, string(snap.Category), string(snap.Status), snap.DailyDate, string(blob), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return nil
}

// Get loads and decodes the latest snapshot.
func (s *sqliteStore) Get(ctx context.Context, id string) (game.Snapshot, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id=?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (s *sqliteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) Close() error { return s.db.Close() }
