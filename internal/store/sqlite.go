package store

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS grid_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS grid_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS grid_history_ts ON grid_history (ts);
`

// SQLite is the durable Store. The snapshot lives in a single-row
// table; history entries are scored by ts with the rowid breaking
// ties in append order.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply sqlite schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveSnapshot(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grid_snapshot (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, data)
	return errors.Wrap(err, "save grid snapshot")
}

func (s *SQLite) LoadSnapshot(ctx context.Context) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM grid_snapshot WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load grid snapshot")
	}
	return data, true, nil
}

func (s *SQLite) Append(ctx context.Context, timestamp int64, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grid_history (ts, data) VALUES (?, ?)`, timestamp, data)
	return errors.Wrap(err, "append history entry")
}

func (s *SQLite) All(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM grid_history ORDER BY ts ASC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query history entries")
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		out = append(out, data)
	}
	return out, errors.Wrap(rows.Err(), "iterate history entries")
}

func (s *SQLite) LastAtOrBefore(ctx context.Context, timestamp int64) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM grid_history WHERE ts <= ? ORDER BY ts DESC, id DESC LIMIT 1`,
		timestamp).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "query history at timestamp")
	}
	return data, true, nil
}

func (s *SQLite) Close() error {
	return errors.Wrap(s.db.Close(), "close sqlite database")
}
