package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"solana-wallet/internal/features/valuation"
	logging "solana-wallet/internal/infra/log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultSnapshotDB = "data_out/tokens.db"

const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	asset_id    TEXT PRIMARY KEY,
	quantity    TEXT NOT NULL,
	unit_price  TEXT NOT NULL,
	total_value TEXT NOT NULL,
	position    INTEGER NOT NULL
)`

// SQLiteSnapshotStore keeps the wallet snapshot in a single SQLite table.
// Decimals are stored as text so values round-trip exactly.
type SQLiteSnapshotStore struct {
	db       *sql.DB
	path     string
	snapshot *valuation.Snapshot
	readErr  error
}

func NewSQLiteSnapshotStore(path string) (*SQLiteSnapshotStore, error) {
	if path == "" {
		path = DefaultSnapshotDB
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &SQLiteSnapshotStore{db: conn, path: path, snapshot: valuation.NewSnapshot()}, nil
}

func (s *SQLiteSnapshotStore) Path() string { return s.path }

// Load rereads the table; a query failure is logged, yields an empty snapshot and
// blocks Flush until a later Load succeeds.
func (s *SQLiteSnapshotStore) Load() map[string]valuation.Record {
	s.snapshot.Reset()
	s.readErr = nil

	records, err := s.readAll()
	if err != nil {
		s.readErr = err
		logging.LogError("Failed to read snapshot table, writes are blocked until it is readable",
			zap.String("file", s.path), zap.Error(err))
		s.snapshot.Reset()
		return s.snapshot.Map()
	}
	for _, r := range records {
		s.snapshot.Put(r)
	}
	return s.snapshot.Map()
}

func (s *SQLiteSnapshotStore) readAll() ([]valuation.Record, error) {
	rows, err := s.db.Query(`SELECT asset_id, quantity, unit_price, total_value FROM snapshot ORDER BY position ASC, asset_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []valuation.Record
	for rows.Next() {
		var id, qty, price, total string
		if err := rows.Scan(&id, &qty, &price, &total); err != nil {
			return nil, err
		}
		r := valuation.Record{AssetID: id}
		if r.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("asset %s quantity: %w", id, err)
		}
		if r.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("asset %s unit price: %w", id, err)
		}
		if r.TotalValue, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("asset %s total value: %w", id, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteSnapshotStore) Upsert(assetID string, quantity, unitPrice decimal.Decimal) bool {
	return s.snapshot.Upsert(assetID, quantity, unitPrice)
}

// Flush writes the changed rows in one transaction.
func (s *SQLiteSnapshotStore) Flush() error {
	if !s.snapshot.IsDirty() {
		return nil
	}
	if s.readErr != nil {
		return fmt.Errorf("%w: %s: %v", valuation.ErrSnapshotUnreadable, s.path, s.readErr)
	}

	positions := make(map[string]int)
	for i, r := range s.snapshot.Records() {
		positions[r.AssetID] = i
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot (asset_id, quantity, unit_price, total_value, position)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
		  quantity=excluded.quantity, unit_price=excluded.unit_price, total_value=excluded.total_value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	dirty := s.snapshot.Dirty()
	for _, r := range dirty {
		if _, err := stmt.Exec(r.AssetID, r.Quantity.String(), r.UnitPrice.String(), r.TotalValue.String(), positions[r.AssetID]); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.AssetID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.snapshot.MarkClean()
	logging.LogDebug("Saved snapshot", zap.String("file", s.path), zap.Int("changed", len(dirty)))
	return nil
}

func (s *SQLiteSnapshotStore) Records() []valuation.Record {
	return s.snapshot.Records()
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
