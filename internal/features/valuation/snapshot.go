package valuation

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSnapshotUnreadable is returned by Flush when the last Load could not read the
// existing backing store. Writing then could drop records this cycle never saw.
var ErrSnapshotUnreadable = errors.New("snapshot could not be read")

// Record is the last persisted valuation of one asset.
type Record struct {
	AssetID    string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalValue decimal.Decimal
}

// SnapshotStore is the durable asset table the engine reads and writes once per cycle.
//
// Load never fails: a missing or unreadable backing store yields an empty map.
// Load also discards any upserts that were not flushed. After an unreadable Load,
// Flush returns ErrSnapshotUnreadable until a later Load succeeds.
type SnapshotStore interface {
	Load() map[string]Record
	Upsert(assetID string, quantity, unitPrice decimal.Decimal) bool
	Flush() error
}

// Snapshot keeps records in first-seen order and tracks which ones changed since the last flush.
// Backends embed it and only deal with reading and writing rows.
type Snapshot struct {
	order   []string
	records map[string]Record
	dirty   map[string]struct{}
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		records: make(map[string]Record),
		dirty:   make(map[string]struct{}),
	}
}

// Reset drops all records, e.g. before reloading from disk.
func (s *Snapshot) Reset() {
	s.order = nil
	s.records = make(map[string]Record)
	s.dirty = make(map[string]struct{})
}

// Put stores a record as already persisted. Used by backends while loading.
func (s *Snapshot) Put(r Record) {
	if _, ok := s.records[r.AssetID]; !ok {
		s.order = append(s.order, r.AssetID)
	}
	s.records[r.AssetID] = r
}

// Upsert appends a new record or overwrites an existing one when quantity or price moved.
// TotalValue is always recomputed from the written quantity and price.
// Returns false when nothing changed.
func (s *Snapshot) Upsert(assetID string, quantity, unitPrice decimal.Decimal) bool {
	total := quantity.Mul(unitPrice)

	existing, ok := s.records[assetID]
	if ok &&
		existing.Quantity.Equal(quantity) &&
		existing.UnitPrice.Equal(unitPrice) &&
		existing.TotalValue.Equal(total) {
		return false
	}
	if !ok {
		s.order = append(s.order, assetID)
	}

	s.records[assetID] = Record{
		AssetID:    assetID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalValue: total,
	}
	s.dirty[assetID] = struct{}{}
	return true
}

// Records returns every record in first-seen order.
func (s *Snapshot) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Dirty returns the records changed since the last MarkClean, in first-seen order.
func (s *Snapshot) Dirty() []Record {
	out := make([]Record, 0, len(s.dirty))
	for _, id := range s.order {
		if _, ok := s.dirty[id]; ok {
			out = append(out, s.records[id])
		}
	}
	return out
}

func (s *Snapshot) IsDirty() bool { return len(s.dirty) > 0 }

func (s *Snapshot) MarkClean() { s.dirty = make(map[string]struct{}) }

// Map returns a copy keyed by asset id.
func (s *Snapshot) Map() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for id, r := range s.records {
		out[id] = r
	}
	return out
}

// MemoryStore is a SnapshotStore that persists into its own memory.
// It backs dry runs and tests.
type MemoryStore struct {
	current   *Snapshot
	persisted []Record
	Flushes   int
	FlushErr  error
}

// NewMemoryStore seeds the store with already persisted records.
func NewMemoryStore(records ...Record) *MemoryStore {
	return &MemoryStore{current: NewSnapshot(), persisted: append([]Record(nil), records...)}
}

func (m *MemoryStore) Load() map[string]Record {
	m.current.Reset()
	for _, r := range m.persisted {
		m.current.Put(r)
	}
	return m.current.Map()
}

func (m *MemoryStore) Upsert(assetID string, quantity, unitPrice decimal.Decimal) bool {
	return m.current.Upsert(assetID, quantity, unitPrice)
}

func (m *MemoryStore) Flush() error {
	m.Flushes++
	if m.FlushErr != nil {
		return m.FlushErr
	}
	m.persisted = m.current.Records()
	m.current.MarkClean()
	return nil
}

// Persisted returns what the last successful Flush wrote.
func (m *MemoryStore) Persisted() []Record {
	return append([]Record(nil), m.persisted...)
}
