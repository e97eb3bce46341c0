package fs

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"solana-wallet/internal/features/valuation"
	logging "solana-wallet/internal/infra/log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultSnapshotFile = "data_out/tokens.csv"

// SnapshotHeader is the first row of every snapshot file.
var SnapshotHeader = []string{"Mint Address", "Balance", "Price USD", "Total Value"}

// CSVSnapshotStore keeps the wallet snapshot as a CSV table, one row per mint.
type CSVSnapshotStore struct {
	path     string
	snapshot *valuation.Snapshot
	readErr  error // set when the last Load could not read an existing file
}

// NewCSVSnapshotStore creates the file with just a header when it does not exist yet.
func NewCSVSnapshotStore(path string) (*CSVSnapshotStore, error) {
	if path == "" {
		path = DefaultSnapshotFile
	}
	s := &CSVSnapshotStore{path: path, snapshot: valuation.NewSnapshot()}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeFileAtomic(path, encodeSnapshot(nil)); err != nil {
			return nil, fmt.Errorf("failed to create snapshot file: %w", err)
		}
		logging.LogInfo("Created snapshot file", zap.String("file", path))
	}
	return s, nil
}

func (s *CSVSnapshotStore) Path() string { return s.path }

// Load rereads the file. Missing or broken files give an empty snapshot; a broken
// file is moved aside first so the next flush does not overwrite it silently.
// A file that exists but cannot be read blocks Flush until a later Load succeeds.
func (s *CSVSnapshotStore) Load() map[string]valuation.Record {
	s.snapshot.Reset()
	s.readErr = nil

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.readErr = err
			logging.LogError("Failed to read snapshot file, writes are blocked until it is readable",
				zap.String("file", s.path), zap.Error(err))
		}
		return s.snapshot.Map()
	}

	records, err := decodeSnapshot(data)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			logging.LogWarn("Failed to move corrupt snapshot aside",
				zap.String("file", s.path), zap.Error(renameErr))
		}
		logging.LogError("Snapshot file is corrupt, starting empty",
			zap.String("file", s.path),
			zap.String("moved_to", aside),
			zap.Error(err))
		return s.snapshot.Map()
	}

	for _, r := range records {
		s.snapshot.Put(r)
	}
	logging.LogDebug("Loaded snapshot", zap.String("file", s.path), zap.Int("records", len(records)))
	return s.snapshot.Map()
}

func (s *CSVSnapshotStore) Upsert(assetID string, quantity, unitPrice decimal.Decimal) bool {
	return s.snapshot.Upsert(assetID, quantity, unitPrice)
}

// Flush rewrites the whole file. Nothing is written when no record changed.
func (s *CSVSnapshotStore) Flush() error {
	if !s.snapshot.IsDirty() {
		return nil
	}
	if s.readErr != nil {
		return fmt.Errorf("%w: %s: %v", valuation.ErrSnapshotUnreadable, s.path, s.readErr)
	}
	if err := writeFileAtomic(s.path, encodeSnapshot(s.snapshot.Records())); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	changed := len(s.snapshot.Dirty())
	s.snapshot.MarkClean()
	logging.LogDebug("Saved snapshot", zap.String("file", s.path), zap.Int("changed", changed))
	return nil
}

// Records returns the rows loaded by the last Load plus pending upserts.
func (s *CSVSnapshotStore) Records() []valuation.Record {
	return s.snapshot.Records()
}

func (s *CSVSnapshotStore) Close() error { return nil }

func encodeSnapshot(records []valuation.Record) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(SnapshotHeader)
	for _, r := range records {
		_ = w.Write([]string{
			r.AssetID,
			r.Quantity.String(),
			r.UnitPrice.String(),
			r.TotalValue.String(),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func decodeSnapshot(data []byte) ([]valuation.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(SnapshotHeader)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(SnapshotHeader, ",") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var records []valuation.Record
	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty mint address", line)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate mint address %s", line, id)
		}
		seen[id] = struct{}{}

		values := make([]decimal.Decimal, 3)
		for i := range values {
			v, err := decimal.NewFromString(strings.TrimSpace(row[i+1]))
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, SnapshotHeader[i+1], err)
			}
			values[i] = v
		}

		records = append(records, valuation.Record{
			AssetID:    id,
			Quantity:   values[0],
			UnitPrice:  values[1],
			TotalValue: values[2],
		})
	}
	return records, nil
}
