package journal

// Append-only history of alerts that were delivered, kept in a segmented WAL
// Old segments are dropped once MaxSegments is reached

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"solana-wallet/internal/features/valuation"
	logging "solana-wallet/internal/infra/log"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"
)

const (
	DefaultDir = "data_out/alerts_wal"

	alertKeyPrefix   = "alert:"
	segmentThreshold = 1000
	maxSegments      = 10
)

type Entry struct {
	Time          time.Time       `json:"time"`
	CycleID       string          `json:"cycle_id"`
	Wallet        string          `json:"wallet"`
	Mint          string          `json:"mint"`
	TotalValue    decimal.Decimal `json:"total_value"`
	PreviousValue decimal.Decimal `json:"previous_value"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// NewEntry stamps an alert with the cycle that produced it.
func NewEntry(cycleID, wallet string, alert valuation.AlertEvent, at time.Time) Entry {
	return Entry{
		Time:          at.UTC(),
		CycleID:       cycleID,
		Wallet:        wallet,
		Mint:          alert.AssetID,
		TotalValue:    alert.TotalValue,
		PreviousValue: alert.PreviousValue,
		Quantity:      alert.Quantity,
		UnitPrice:     alert.UnitPrice,
	}
}

type Journal struct {
	mu  sync.Mutex
	wal *gowal.Wal
	dir string
}

func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure journal directory %s: %w", dir, err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "alerts_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open alert journal: %w", err)
	}

	return &Journal{wal: wal, dir: dir}, nil
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	if err := j.wal.Write(nextIndex, alertKeyPrefix+e.Mint, data); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

// Last returns up to n most recent entries, oldest first. n <= 0 returns everything kept.
func (j *Journal) Last(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []Entry
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, alertKeyPrefix) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			logging.LogWarn("Skipping unreadable journal entry", zap.String("key", msg.Key), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
