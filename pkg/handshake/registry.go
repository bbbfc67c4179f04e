// Package handshake implements the handshake registry: tracking ECDH
// public-key exchange status per (channel_address, counterparty) pair by
// reading HANDSHAKE memos out of cached history, with a read-through
// in-memory cache of resolved key pairs.
package handshake

import (
	"context"
	"log"
	"sync"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/memo"
	"github.com/postfiat/taskengine/pkg/taskstate"
)

// Source supplies decoded memo history for an address; implemented by
// memohistory.Builder and database.TransactionRepository.
type Source interface {
	History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error)
}

// Keys holds the two halves of a channel's ECDH exchange. A channel is
// usable for encryption in either direction only when both are present.
type Keys struct {
	ChannelKey      string // latest key the channel address sent to the counterparty
	CounterpartyKey string // latest key the counterparty sent to the channel address
}

// Complete reports whether both halves of the exchange exist.
func (k Keys) Complete() bool {
	return k.ChannelKey != "" && k.CounterpartyKey != ""
}

// Registry tracks handshake state for every channel address the node
// owns. The cache is purely a read-through optimization over the
// transaction cache; correctness never depends on it.
type Registry struct {
	source Source
	logger *log.Logger

	mu    sync.RWMutex
	cache map[string]Keys // keyed by channel|counterparty
	auto  map[string]bool // channel addresses that auto-respond to handshakes
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a custom logger for the registry.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry constructs a Registry over source.
func NewRegistry(source Source, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: log.New(log.Writer(), "[Handshake] ", log.LstdFlags),
		cache:  make(map[string]Keys),
		auto:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterAutoAddress marks address as auto-responding: the handshake
// queue replies to any unanswered HANDSHAKE sent to it. Called at
// startup for the node's own address and the remembrancer's, if
// configured.
func (r *Registry) RegisterAutoAddress(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auto[address] = true
	r.logger.Printf("registered auto-handshake address %s", address)
}

// AutoAddresses returns every registered auto-respond address.
func (r *Registry) AutoAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.auto))
	for addr := range r.auto {
		out = append(out, addr)
	}
	return out
}

func cacheKey(channel, counterparty string) string {
	return channel + "|" + counterparty
}

// Get returns the current handshake keys for the ordered pair
// (channelAddress, counterparty), reading the latest HANDSHAKE memos in
// both directions from history. A complete pair is cached; incomplete
// pairs are re-read on every call so a newly arrived key is seen
// promptly.
func (r *Registry) Get(ctx context.Context, channelAddress, counterparty string) (Keys, error) {
	r.mu.RLock()
	cached, ok := r.cache[cacheKey(channelAddress, counterparty)]
	r.mu.RUnlock()
	if ok && cached.Complete() {
		return cached, nil
	}

	history, err := r.source.History(ctx, channelAddress, false)
	if err != nil {
		return Keys{}, err
	}

	keys := keysFromHistory(history, channelAddress, counterparty)
	if keys.Complete() {
		r.mu.Lock()
		r.cache[cacheKey(channelAddress, counterparty)] = keys
		r.mu.Unlock()
	}
	return keys, nil
}

// keysFromHistory scans a channel address's history for the latest
// HANDSHAKE memo in each direction of the (channel, counterparty) pair.
// History arrives in ledger order, so the last match in each direction
// wins.
func keysFromHistory(history []database.DecodedMemo, channelAddress, counterparty string) Keys {
	var keys Keys
	for _, m := range history {
		if m.MemoType != taskstate.MemoTypeHandshake {
			continue
		}
		switch {
		case m.Account == channelAddress && m.Destination == counterparty:
			keys.ChannelKey = m.MemoData
		case m.Account == counterparty && m.Destination == channelAddress:
			keys.CounterpartyKey = m.MemoData
		}
	}
	return keys
}

// PendingFor returns the counterparties that have sent a HANDSHAKE to
// address but not yet received one back — the handshake queue's work set
// for an auto-respond address.
func (r *Registry) PendingFor(ctx context.Context, address string) ([]string, error) {
	history, err := r.source.History(ctx, address, false)
	if err != nil {
		return nil, err
	}

	received := make(map[string]bool)
	replied := make(map[string]bool)
	var order []string

	for _, m := range history {
		if m.MemoType != taskstate.MemoTypeHandshake {
			continue
		}
		switch {
		case m.Destination == address:
			if !received[m.Account] {
				received[m.Account] = true
				order = append(order, m.Account)
			}
		case m.Account == address:
			replied[m.Destination] = true
		}
	}

	var pending []string
	for _, counterparty := range order {
		if !replied[counterparty] {
			pending = append(pending, counterparty)
		}
	}
	return pending, nil
}

// SharedSecret derives the X25519 shared secret for encrypting memos
// between the channel wallet (identified by its raw seed entropy) and
// counterparty, using the counterparty's latest handshake key. Returns
// nil if the counterparty has not completed the handshake.
func (r *Registry) SharedSecret(ctx context.Context, channelAddress string, channelEntropy []byte, counterparty string) ([]byte, error) {
	keys, err := r.Get(ctx, channelAddress, counterparty)
	if err != nil {
		return nil, err
	}
	if keys.CounterpartyKey == "" {
		return nil, nil
	}
	return memo.SharedSecret(channelEntropy, keys.CounterpartyKey)
}
