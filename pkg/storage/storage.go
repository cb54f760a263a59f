package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a preference key is not set.
var ErrNotFound = errors.New("preference not found")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS preferences (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// GetPreference returns the raw value stored under key, or ErrNotFound.
func (d *DB) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetPreference inserts or replaces the value stored under key.
func (d *DB) SetPreference(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO preferences(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// DeletePreference removes key. Removing a missing key is not an error.
func (d *DB) DeletePreference(ctx context.Context, key string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key)
	return err
}

// Preference is one stored key/value pair.
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ListPreferences returns every stored preference ordered by key.
func (d *DB) ListPreferences(ctx context.Context) ([]Preference, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT key, value, updated_at FROM preferences ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		var updatedAtStr string
		if err := rows.Scan(&p.Key, &p.Value, &updatedAtStr); err != nil {
			return nil, err
		}
		p.UpdatedAt = parseTimestamp(updatedAtStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearPreferences removes every stored preference and returns how many there were.
func (d *DB) ClearPreferences(ctx context.Context) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM preferences")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Stats struct {
	PreferenceCount int
	LastUpdated     time.Time
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var (
		s    Stats
		last sql.NullString
	)
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*), MAX(updated_at) FROM preferences").Scan(&s.PreferenceCount, &last)
	if err != nil {
		return Stats{}, err
	}
	if last.Valid {
		s.LastUpdated = parseTimestamp(last.String)
	}
	return s, nil
}

// parseTimestamp accepts SQLite CURRENT_TIMESTAMP text and RFC3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// Exec runs a raw statement. Used by the db shell.
func (d *DB) Exec(ctx context.Context, query string) (int64, error) {
	res, err := d.sql.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query runs a raw query and returns the column names and stringified rows.
func (d *DB) Query(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}
