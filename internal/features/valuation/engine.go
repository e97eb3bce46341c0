package valuation

import (
	"fmt"

	"solana-wallet/internal/infra/log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Holding is one asset balance reported for the wallet this cycle.
type Holding struct {
	AssetID  string
	Quantity decimal.Decimal
}

// Prices maps asset id to USD unit price. A missing key means no quote.
type Prices map[string]decimal.Decimal

type AlertEvent struct {
	AssetID       string
	TotalValue    decimal.Decimal
	PreviousValue decimal.Decimal
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
}

type Summary struct {
	Holdings int
	Priced   int
	Created  int
	Updated  int
	Alerts   int
}

type Engine struct {
	store      SnapshotStore
	thresholds Thresholds
}

func NewEngine(store SnapshotStore, thresholds Thresholds) *Engine {
	return &Engine{store: store, thresholds: thresholds}
}

// Evaluate values every priced holding, classifies it against the stored total and
// upserts it. Unpriced holdings are left untouched. The store is flushed once at the end
// and a flush error fails the whole evaluation.
func (e *Engine) Evaluate(holdings []Holding, prices Prices) ([]AlertEvent, Summary, error) {
	previous := e.store.Load()
	summary := Summary{Holdings: len(holdings)}
	var alerts []AlertEvent

	for _, h := range holdings {
		price, ok := prices[h.AssetID]
		if !ok {
			log.LogDebug("No price for holding, skipping", zap.String("mint", h.AssetID))
			continue
		}
		summary.Priced++

		total := h.Quantity.Mul(price)

		prevValue := decimal.NullDecimal{}
		prevRecord, existed := previous[h.AssetID]
		if existed {
			prevValue = decimal.NewNullDecimal(prevRecord.TotalValue)
		}

		if e.thresholds.IsSignificant(prevValue, total) {
			alerts = append(alerts, AlertEvent{
				AssetID:       h.AssetID,
				TotalValue:    total,
				PreviousValue: prevRecord.TotalValue,
				Quantity:      h.Quantity,
				UnitPrice:     price,
			})
		}

		if e.store.Upsert(h.AssetID, h.Quantity, price) {
			if existed {
				summary.Updated++
			} else {
				summary.Created++
			}
		}
	}
	summary.Alerts = len(alerts)

	if err := e.store.Flush(); err != nil {
		return nil, summary, fmt.Errorf("failed to flush snapshot: %w", err)
	}

	log.LogInfo("Valuation evaluated",
		zap.Int("holdings", summary.Holdings),
		zap.Int("priced", summary.Priced),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("alerts", summary.Alerts))

	return alerts, summary, nil
}
