// Package queue implements the queue orchestrator: five processing
// loops (proposals, initiations, verifications, rewards, handshakes) run
// sequentially in one worker, each scanning the cache for work, calling
// the LLM, sending on-chain responses, verifying on-ledger confirmation,
// and only then recording the outcome.
package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/postfiat/taskengine/pkg/config"
	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/llm"
	"github.com/postfiat/taskengine/pkg/metrics"
	"github.com/postfiat/taskengine/pkg/nodeconfig"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// Orchestrator owns the five processing queues.
type Orchestrator struct {
	cfg        *config.Config
	node       *nodeconfig.NodeConfig
	history    HistorySource
	processing ProcessingRecorder
	handshakes HandshakeRegistry
	completer  llm.Completer
	sender     Sender
	docs       DocFetcher
	metrics    *metrics.Metrics
	logger     *log.Logger

	// wallets maps each node-owned address to its signing wallet.
	wallets map[string]*xrpl.Wallet

	now  func() time.Time
	stop chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics wires Prometheus counters into the orchestrator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithDocFetcher overrides the context-document fetcher.
func WithDocFetcher(d DocFetcher) Option {
	return func(o *Orchestrator) { o.docs = d }
}

// WithClock overrides the orchestrator's time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator constructs the orchestrator. wallets must contain the
// node's own wallet keyed by its address, plus the remembrancer's if
// configured.
func NewOrchestrator(
	cfg *config.Config,
	node *nodeconfig.NodeConfig,
	history HistorySource,
	processing ProcessingRecorder,
	handshakes HandshakeRegistry,
	completer llm.Completer,
	sender Sender,
	wallets map[string]*xrpl.Wallet,
	opts ...Option,
) (*Orchestrator, error) {
	if _, ok := wallets[node.NodeAddress]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoWallet, node.NodeAddress)
	}

	o := &Orchestrator{
		cfg:        cfg,
		node:       node,
		history:    history,
		processing: processing,
		handshakes: handshakes,
		completer:  completer,
		sender:     sender,
		wallets:    wallets,
		docs:       NewGoogleDocFetcher(),
		logger:     log.New(log.Writer(), "[Queue] ", log.LstdFlags),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Stop requests the worker exit after the current queue finishes.
func (o *Orchestrator) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// Run cycles the five queues until ctx is canceled or Stop is called,
// sleeping cfg.QueueCycleSleep between cycles.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Printf("cycle failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		case <-time.After(o.cfg.QueueCycleSleep):
		}
	}
}

// queueFunc is one of the five queues. Each refreshes its own view of
// the node's history so it observes the effects of the queue before it.
type queueFunc struct {
	name string
	run  func(ctx context.Context) error
}

// RunCycle runs all five queues once, sequentially. A queue's failure is
// logged and does not stop the remaining queues: unfinished work stays
// in the cache and is rescanned next cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	queues := []queueFunc{
		{"proposal", o.runProposalQueue},
		{"initiation", o.runInitiationQueue},
		{"verification", o.runVerificationQueue},
		{"reward", o.runRewardQueue},
		{"handshake", o.runHandshakeQueue},
	}

	for _, q := range queues {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		default:
		}

		if err := q.run(ctx); err != nil {
			o.logger.Printf("%s queue failed: %v", q.name, err)
		}
	}

	if o.metrics != nil {
		o.metrics.QueueCycles.Inc()
	}
	return nil
}

// nodeHistory fetches the node's current logical memo history.
func (o *Orchestrator) nodeHistory(ctx context.Context) ([]database.DecodedMemo, error) {
	return o.history.History(ctx, o.node.NodeAddress, false)
}

// isProcessed reports whether hash already has a processing_results row,
// guarding against double-sends between a reply and the monitor catching
// up with it.
func (o *Orchestrator) isProcessed(ctx context.Context, hash string) bool {
	done, err := o.processing.IsProcessed(ctx, hash)
	if err != nil {
		o.logger.Printf("failed to check processing state for %s: %v", hash, err)
		return false
	}
	return done
}

// record writes the processing_results row for a confirmed work item.
func (o *Orchestrator) record(ctx context.Context, workHash, rule, responseHash, notes string) {
	result := database.ProcessingResult{
		TxHash:    workHash,
		Processed: true,
		RuleName:  rule,
	}
	if responseHash != "" {
		result.ResponseTxHash.String, result.ResponseTxHash.Valid = responseHash, true
	}
	if notes != "" {
		result.Notes.String, result.Notes.Valid = notes, true
	}
	if err := o.processing.Record(ctx, result); err != nil {
		o.logger.Printf("failed to record processing result for %s: %v", workHash, err)
		return
	}
	if o.metrics != nil {
		o.metrics.ResponsesSent.WithLabelValues(rule).Inc()
	}
}

// lastResponseHash extracts the response tx hash from a SendMemo result.
func lastResponseHash(results []*xrpl.SubmitResult) string {
	if len(results) == 0 {
		return ""
	}
	return results[len(results)-1].Hash
}

// llmArgs builds the standard two-message completion request.
func (o *Orchestrator) llmArgs(system, user string) llm.Args {
	return llm.Args{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}
