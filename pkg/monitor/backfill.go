// backfill.go runs the two periodic cache-population workers:
// a full-history backfill on a slow cadence and a faster delta poll when
// a local node is available, plus the holder-discovery pass that keeps
// the tracked-account set aligned with PFT trust lines.
package monitor

import (
	"context"
	"log"
	"strconv"
	"time"
)

// Backfiller periodically refreshes the cache and the tracked set.
type Backfiller struct {
	monitor   *Monitor
	threshold float64
	logger    *log.Logger

	FullInterval  time.Duration
	DeltaInterval time.Duration
	DeltaEnabled  bool
}

// NewBackfiller constructs a Backfiller over the monitor's client, cache
// and tracked set. threshold is the minimum PFT balance for a holder to
// be tracked.
func NewBackfiller(m *Monitor, threshold float64, logger *log.Logger) *Backfiller {
	if logger == nil {
		logger = log.New(log.Writer(), "[Backfill] ", log.LstdFlags)
	}
	return &Backfiller{
		monitor:       m,
		threshold:     threshold,
		logger:        logger,
		FullInterval:  60 * time.Minute,
		DeltaInterval: 30 * time.Second,
	}
}

// Run executes an immediate full backfill, then loops on the configured
// intervals until ctx is canceled.
func (b *Backfiller) Run(ctx context.Context) error {
	b.full(ctx)

	fullTicker := time.NewTicker(b.FullInterval)
	defer fullTicker.Stop()

	var deltaC <-chan time.Time
	if b.DeltaEnabled {
		deltaTicker := time.NewTicker(b.DeltaInterval)
		defer deltaTicker.Stop()
		deltaC = deltaTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fullTicker.C:
			b.full(ctx)
		case <-deltaC:
			b.delta(ctx)
		}
	}
}

// full refreshes the holder set from the PFT issuer's trust lines, then
// re-reads complete history for every tracked address.
func (b *Backfiller) full(ctx context.Context) {
	b.discoverHolders(ctx)
	for _, address := range b.monitor.TrackedAddresses() {
		if err := b.monitor.fillAccount(ctx, address, -1); err != nil {
			b.logger.Printf("full backfill for %s failed: %v", address, err)
		}
	}
	b.logger.Printf("full backfill complete (%d tracked accounts)", len(b.monitor.TrackedAddresses()))
}

// delta re-reads only the window since the last seen ledger.
func (b *Backfiller) delta(ctx context.Context) {
	b.monitor.gapFill(ctx)
}

// discoverHolders tracks every account holding at least the threshold
// balance of PFT, read from the issuer's trust lines.
func (b *Backfiller) discoverHolders(ctx context.Context) {
	lines, err := b.monitor.client.AccountLines(ctx, b.monitor.pftIssuer)
	if err != nil {
		b.logger.Printf("failed to read issuer trust lines: %v", err)
		return
	}

	added := 0
	for _, line := range lines {
		if line.Currency != "PFT" {
			continue
		}
		balance, err := strconv.ParseFloat(line.Balance, 64)
		if err != nil {
			continue
		}
		// Issuer-side trust line balances are negative for tokens the
		// issuer has put into circulation.
		if balance < 0 {
			balance = -balance
		}
		if balance >= b.threshold && !b.monitor.isTracked(line.Account) {
			b.monitor.Track(line.Account)
			added++
		}
	}
	if added > 0 {
		b.logger.Printf("tracking %d newly discovered PFT holders", added)
	}
}
