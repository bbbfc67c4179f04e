// Package monitor implements the ledger monitor: a long-lived
// subscriber tailing validated transactions for every tracked account and
// feeding them into the transaction cache, plus the periodic backfill
// workers that keep the cache complete across disconnects and restarts.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/metrics"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// Monitor tails the validated-transaction stream and caches every
// transaction involving a tracked account.
type Monitor struct {
	subscriber *xrpl.Subscriber
	client     *xrpl.Client
	repo       *database.TransactionRepository
	pftIssuer  string
	metrics    *metrics.Metrics
	logger     *log.Logger

	mu            sync.RWMutex
	tracked       map[string]bool
	lastLedgerIdx int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets a custom logger for the monitor.
func WithLogger(logger *log.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithMetrics wires Prometheus counters into the monitor.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// NewMonitor constructs a Monitor tracking the given base addresses
// (the node's own accounts). Track adds more at runtime.
func NewMonitor(subscriber *xrpl.Subscriber, client *xrpl.Client, repo *database.TransactionRepository, pftIssuer string, baseAddresses []string, opts ...Option) *Monitor {
	m := &Monitor{
		subscriber: subscriber,
		client:     client,
		repo:       repo,
		pftIssuer:  pftIssuer,
		logger:     log.New(log.Writer(), "[Monitor] ", log.LstdFlags),
		tracked:    make(map[string]bool),
	}
	for _, addr := range baseAddresses {
		m.tracked[addr] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track adds address to the tracked set.
func (m *Monitor) Track(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[address] = true
}

// TrackedAddresses returns a snapshot of the tracked set.
func (m *Monitor) TrackedAddresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tracked))
	for addr := range m.tracked {
		out = append(out, addr)
	}
	return out
}

func (m *Monitor) isTracked(address string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracked[address]
}

// Run starts the subscription and consumes events until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.subscriber.Start(ctx); err != nil {
		return err
	}
	defer m.subscriber.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-m.subscriber.Events():
			if !ok {
				return nil
			}
			m.handleEvent(ctx, event)
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, event xrpl.StreamEvent) {
	switch {
	case event.Reconnected:
		if m.metrics != nil {
			m.metrics.LedgerReconnects.Inc()
		}
		m.gapFill(ctx)
	case event.LedgerClosed != nil:
		m.mu.Lock()
		if event.LedgerClosed.LedgerIndex > m.lastLedgerIdx {
			m.lastLedgerIdx = event.LedgerClosed.LedgerIndex
		}
		m.mu.Unlock()
	case event.Transaction != nil:
		m.handleTransaction(ctx, event.Transaction)
	}
}

func (m *Monitor) handleTransaction(ctx context.Context, e *xrpl.TransactionStreamEvent) {
	if !e.Validated {
		return
	}

	var fields struct {
		Account     string `json:"Account"`
		Destination string `json:"Destination"`
	}
	if err := json.Unmarshal(e.Transaction, &fields); err != nil {
		m.logger.Printf("unparseable stream transaction: %v", err)
		return
	}
	if !m.isTracked(fields.Account) && !m.isTracked(fields.Destination) {
		return
	}

	tx, err := ConvertStreamEvent(e, m.pftIssuer)
	if err != nil {
		m.logger.Printf("failed to convert stream transaction: %v", err)
		return
	}

	inserted, err := m.repo.BatchInsert(ctx, []database.Transaction{tx})
	if err != nil {
		m.logger.Printf("failed to cache transaction %s: %v", tx.Hash, err)
		return
	}
	if inserted > 0 && m.metrics != nil {
		m.metrics.TransactionsCached.Add(float64(inserted))
	}
	m.mu.Lock()
	if e.LedgerIndex > m.lastLedgerIdx {
		m.lastLedgerIdx = e.LedgerIndex
	}
	m.mu.Unlock()
}

// gapFill re-reads history for every tracked address from the last seen
// ledger index forward, closing any hole a disconnect opened.
func (m *Monitor) gapFill(ctx context.Context) {
	m.mu.RLock()
	from := m.lastLedgerIdx
	m.mu.RUnlock()

	m.logger.Printf("gap-filling tracked accounts from ledger %d", from)
	for _, address := range m.TrackedAddresses() {
		if err := m.fillAccount(ctx, address, from); err != nil {
			m.logger.Printf("gap-fill for %s failed: %v", address, err)
		}
	}
}

func (m *Monitor) fillAccount(ctx context.Context, address string, fromLedger int64) error {
	var marker json.RawMessage
	for {
		records, next, err := m.client.AccountTx(ctx, address, fromLedger, -1, 200, marker)
		if err != nil {
			return err
		}

		txs := make([]database.Transaction, 0, len(records))
		for _, rec := range records {
			tx, err := ConvertRecord(rec, m.pftIssuer)
			if err != nil {
				m.logger.Printf("skipping unconvertible transaction for %s: %v", address, err)
				continue
			}
			txs = append(txs, tx)
		}

		inserted, err := m.repo.BatchInsert(ctx, txs)
		if err != nil {
			return err
		}
		if inserted > 0 && m.metrics != nil {
			m.metrics.TransactionsCached.Add(float64(inserted))
		}

		if next == nil {
			return nil
		}
		marker = next
	}
}
