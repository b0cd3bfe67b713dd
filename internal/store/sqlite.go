package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default DeviceStore implementation: pure-Go SQLite (no
// CGO), WAL mode, single writer. Grounded on internal/store/sqlite.go's
// NewSQLiteStore/migrate pattern.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if necessary) the SQLite database at path
// and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer, matching the teacher's idiom

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			issued_at INTEGER NOT NULL,
			last_seen_at INTEGER NOT NULL,
			expires_at INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires *int64
	if rec.ExpiresAt != nil {
		v := rec.ExpiresAt.Unix()
		expires = &v
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, name, user_agent, token_hash, status, issued_at, last_seen_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DeviceID, rec.Name, rec.UserAgent, rec.TokenHash, rec.Status,
		rec.IssuedAt.Unix(), rec.LastSeenAt.Unix(), expires,
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, deviceID string) (*DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, name, user_agent, token_hash, status, issued_at, last_seen_at, expires_at
		 FROM devices WHERE device_id = ?`, deviceID)
	return scanDevice(row)
}

func scanDevice(row *sql.Row) (*DeviceRecord, error) {
	var rec DeviceRecord
	var issued, lastSeen int64
	var expires sql.NullInt64
	err := row.Scan(&rec.DeviceID, &rec.Name, &rec.UserAgent, &rec.TokenHash, &rec.Status, &issued, &lastSeen, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	rec.IssuedAt = time.Unix(issued, 0).UTC()
	rec.LastSeenAt = time.Unix(lastSeen, 0).UTC()
	if expires.Valid {
		t := time.Unix(expires.Int64, 0).UTC()
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) UpdateTokenHash(ctx context.Context, deviceID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE devices SET token_hash = ? WHERE device_id = ?`, tokenHash, deviceID)
	if err != nil {
		return fmt.Errorf("updating token hash: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE devices SET last_seen_at = ? WHERE device_id = ?`, at.Unix(), deviceID)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Revoke(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE devices SET status = 'revoked' WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) RevokeAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE devices SET status = 'revoked' WHERE status != 'revoked'`)
	if err != nil {
		return 0, fmt.Errorf("revoking all devices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting revoked devices: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, name, user_agent, token_hash, status, issued_at, last_seen_at, expires_at
		 FROM devices ORDER BY issued_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var rec DeviceRecord
		var issued, lastSeen int64
		var expires sql.NullInt64
		if err := rows.Scan(&rec.DeviceID, &rec.Name, &rec.UserAgent, &rec.TokenHash, &rec.Status, &issued, &lastSeen, &expires); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		rec.IssuedAt = time.Unix(issued, 0).UTC()
		rec.LastSeenAt = time.Unix(lastSeen, 0).UTC()
		if expires.Valid {
			t := time.Unix(expires.Int64, 0).UTC()
			rec.ExpiresAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
