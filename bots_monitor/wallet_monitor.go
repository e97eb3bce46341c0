package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-wallet/internal/features/valuation"
	"solana-wallet/internal/infra/journal"
	log "solana-wallet/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 600 * time.Second
	DefaultBatchSize    = 2
)

type BalanceSource interface {
	FetchBalances(ctx context.Context, wallet string) ([]valuation.Holding, error)
}

type PriceSource interface {
	FetchPrices(ctx context.Context, mints []string) (valuation.Prices, error)
}

type AlertJournal interface {
	Append(e journal.Entry) error
}

// IgnoreSource lists mints that are dropped before valuation.
type IgnoreSource interface {
	Set() (map[string]struct{}, error)
}

type CycleStatus int

const (
	CycleEmpty CycleStatus = iota
	CycleAlerts
	CycleFailed
)

func (s CycleStatus) String() string {
	switch s {
	case CycleEmpty:
		return "empty"
	case CycleAlerts:
		return "alerts"
	case CycleFailed:
		return "failed"
	default:
		return fmt.Sprintf("CycleStatus(%d)", int(s))
	}
}

// CycleResult is the outcome of one fetch -> evaluate -> notify pass.
// A failed cycle may still carry alerts when only delivery failed.
type CycleResult struct {
	ID         string
	Status     CycleStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Holdings   int
	Summary    valuation.Summary
	Alerts     []valuation.AlertEvent
	Err        error
}

func (r CycleResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

type Options struct {
	Wallet   string
	Balances BalanceSource
	Prices   PriceSource
	Engine   *valuation.Engine
	Notifier Notifier
	Journal  AlertJournal // optional
	Ignore   IgnoreSource // optional

	BatchSize int
	Interval  time.Duration

	// Wait sleeps between cycles. Tests replace it to run a bounded number of cycles.
	Wait func(ctx context.Context, d time.Duration) error
	// OnCycle is called after every cycle of Run.
	OnCycle func(CycleResult)
	Now     func() time.Time
}

// WalletMonitor polls one wallet, values it and sends alerts for significant changes.
type WalletMonitor struct {
	wallet    string
	balances  BalanceSource
	prices    PriceSource
	engine    *valuation.Engine
	notifier  Notifier
	journal   AlertJournal
	ignore    IgnoreSource
	batchSize int
	interval  time.Duration
	wait      func(ctx context.Context, d time.Duration) error
	onCycle   func(CycleResult)
	now       func() time.Time
}

func NewWalletMonitor(opts Options) *WalletMonitor {
	m := &WalletMonitor{
		wallet:    opts.Wallet,
		balances:  opts.Balances,
		prices:    opts.Prices,
		engine:    opts.Engine,
		notifier:  opts.Notifier,
		journal:   opts.Journal,
		ignore:    opts.Ignore,
		batchSize: opts.BatchSize,
		interval:  opts.Interval,
		wait:      opts.Wait,
		onCycle:   opts.OnCycle,
		now:       opts.Now,
	}
	if m.batchSize < 1 {
		m.batchSize = DefaultBatchSize
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.wait == nil {
		m.wait = sleepContext
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Run executes a cycle immediately and then one cycle per interval, measured from
// the end of the previous cycle. It only returns when ctx is done.
func (m *WalletMonitor) Run(ctx context.Context) error {
	log.LogInfo("Starting wallet monitor",
		zap.String("wallet", m.wallet),
		zap.Duration("interval", m.interval),
		zap.Int("batch_size", m.batchSize))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := m.RunCycle(ctx)
		if m.onCycle != nil {
			m.onCycle(result)
		}

		if err := m.wait(ctx, m.interval); err != nil {
			log.LogInfo("Wallet monitor stopped", zap.String("wallet", m.wallet))
			return err
		}
	}
}

// RunCycle never panics: a panic anywhere in the cycle becomes a CycleFailed result.
func (m *WalletMonitor) RunCycle(ctx context.Context) (result CycleResult) {
	result = CycleResult{ID: uuid.NewString(), StartedAt: m.now()}
	logger := log.Logger.With(zap.String("cycle_id", result.ID))

	defer func() {
		if r := recover(); r != nil {
			result.Status = CycleFailed
			result.Err = fmt.Errorf("cycle panicked: %v", r)
		}
		result.FinishedAt = m.now()
		m.logResult(result)
	}()

	holdings, err := m.balances.FetchBalances(ctx, m.wallet)
	if err != nil {
		result.Status = CycleFailed
		result.Err = fmt.Errorf("failed to fetch balances: %w", err)
		return result
	}
	holdings = m.dropIgnored(holdings)
	result.Holdings = len(holdings)

	if len(holdings) == 0 {
		logger.Info("No holdings, skipping cycle")
		result.Status = CycleEmpty
		return result
	}

	prices := m.fetchPrices(ctx, holdings, logger)

	alerts, summary, err := m.engine.Evaluate(holdings, prices)
	result.Summary = summary
	if err != nil {
		result.Status = CycleFailed
		result.Err = err
		return result
	}
	result.Alerts = alerts

	if err := m.notify(ctx, result.ID, alerts); err != nil {
		result.Status = CycleFailed
		result.Err = err
		return result
	}

	if len(alerts) > 0 {
		result.Status = CycleAlerts
	} else {
		result.Status = CycleEmpty
	}
	return result
}

func (m *WalletMonitor) dropIgnored(holdings []valuation.Holding) []valuation.Holding {
	if m.ignore == nil {
		return holdings
	}
	ignored, err := m.ignore.Set()
	if err != nil {
		log.LogWarn("Failed to load ignored mints, valuing everything", zap.Error(err))
		return holdings
	}
	if len(ignored) == 0 {
		return holdings
	}

	kept := holdings[:0:0]
	for _, h := range holdings {
		if _, skip := ignored[h.AssetID]; skip {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

// fetchPrices asks the price source in batches. A failed batch is logged and its mints stay unpriced.
func (m *WalletMonitor) fetchPrices(ctx context.Context, holdings []valuation.Holding, logger *zap.Logger) valuation.Prices {
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		ids = append(ids, h.AssetID)
	}

	prices := valuation.Prices{}
	for _, batch := range Batches(ids, m.batchSize) {
		quotes, err := m.prices.FetchPrices(ctx, batch)
		if err != nil {
			logger.Warn("Price batch failed", zap.Strings("mints", batch), zap.Error(err))
			continue
		}
		for id, p := range quotes {
			prices[id] = p
		}
	}
	return prices
}

// notify attempts every alert and returns the joined delivery errors.
func (m *WalletMonitor) notify(ctx context.Context, cycleID string, alerts []valuation.AlertEvent) error {
	var errs []error
	for _, alert := range alerts {
		if err := m.notifier.Send(ctx, FormatAlertMessage(alert), tgbotapi.ModeHTML); err != nil {
			errs = append(errs, fmt.Errorf("alert for %s: %w", alert.AssetID, err))
			continue
		}

		if m.journal != nil {
			entry := journal.NewEntry(cycleID, m.wallet, alert, m.now())
			if err := m.journal.Append(entry); err != nil {
				log.LogWarn("Failed to journal alert",
					zap.String("cycle_id", cycleID),
					zap.String("mint", alert.AssetID),
					zap.Error(err))
			}
		}
	}
	return errors.Join(errs...)
}

func (m *WalletMonitor) logResult(r CycleResult) {
	fields := []zap.Field{
		zap.String("cycle_id", r.ID),
		zap.String("status", r.Status.String()),
		zap.Int("holdings", r.Holdings),
		zap.Int("priced", r.Summary.Priced),
		zap.Int("alerts", len(r.Alerts)),
		zap.Int64("duration_ms", r.Duration().Milliseconds()),
	}
	switch r.Status {
	case CycleFailed:
		log.LogError("Cycle failed", append(fields, zap.Error(r.Err))...)
	case CycleAlerts:
		log.LogSuccess(fmt.Sprintf("Cycle sent %d alert(s)", len(r.Alerts)), fields...)
	default:
		log.LogInfo("Cycle finished", fields...)
	}
}

// Batches splits ids into consecutive chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
