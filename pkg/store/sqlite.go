package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// SQLite stores records in a single table. The encoded record is the source of truth;
// the other columns exist for ad-hoc inspection with the sqlite shell.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "data/oracle.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_records (
			record_key TEXT PRIMARY KEY,
			asset TEXT NOT NULL UNIQUE,
			name TEXT,
			recent_price TEXT,
			last_update INTEGER NOT NULL DEFAULT 0,
			data BLOB NOT NULL,
			updated_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_price_records_asset ON price_records(asset);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func sqliteKey(asset string) string {
	key := oracle.DeriveKey(asset)
	return hex.EncodeToString(key[:])
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRecord(ctx context.Context, q queryer, asset string) (*oracle.AssetPriceRecord, error) {
	var data []byte
	err := q.QueryRowContext(ctx, `SELECT data FROM price_records WHERE record_key = ?`, sqliteKey(asset)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", asset, err)
	}
	return oracle.UnmarshalRecord(data)
}

func (s *SQLite) Create(ctx context.Context, rec *oracle.AssetPriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreClosed
	}

	data, err := oracle.MarshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO price_records
		(record_key, asset, name, recent_price, last_update, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sqliteKey(rec.Asset), rec.Asset, rec.Name, rec.RecentPrice.String(),
		int64(rec.LastUpdate), data, time.Now().UTC().Format(time.RFC3339)) // #nosec G115
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrRecordExists
		}
		return fmt.Errorf("insert record %s: %w", rec.Asset, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	return loadRecord(ctx, s.db, asset)
}

func (s *SQLite) Update(ctx context.Context, asset string, fn MutateFunc) (*oracle.AssetPriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := loadRecord(ctx, tx, asset)
	if err != nil {
		return nil, err
	}
	next, err := apply(current, fn)
	if err != nil {
		return nil, err
	}
	data, err := oracle.MarshalRecord(next)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE price_records
		SET name = ?, recent_price = ?, last_update = ?, data = ?, updated_at = ?
		WHERE record_key = ?`,
		next.Name, next.RecentPrice.String(), int64(next.LastUpdate), data, // #nosec G115
		time.Now().UTC().Format(time.RFC3339), sqliteKey(asset))
	if err != nil {
		return nil, fmt.Errorf("update record %s: %w", asset, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next.Clone(), nil
}

func (s *SQLite) List(ctx context.Context) ([]*oracle.AssetPriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM price_records ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*oracle.AssetPriceRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := oracle.UnmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
