package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/postfiat/taskengine/pkg/config"
	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/handshake"
	"github.com/postfiat/taskengine/pkg/llm"
	"github.com/postfiat/taskengine/pkg/nodeconfig"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

const (
	testNodeAddress = "rNODE000000000000000000000000000"
	testUserAddress = "rUSER000000000000000000000000000"
)

// fakeLedger is an in-memory stand-in for the transaction cache plus the
// monitor: sends land in it immediately, so verification-of-send
// observes them on the first poll.
type fakeLedger struct {
	mu    sync.Mutex
	memos []database.DecodedMemo
	seq   int
}

func (f *fakeLedger) add(from, to, memoType, memoData string, pft float64, at time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	hash := fmt.Sprintf("TX%04d", f.seq)
	f.memos = append(f.memos, database.DecodedMemo{
		Hash:              hash,
		Account:           from,
		Destination:       to,
		Datetime:          at,
		LedgerIndex:       int64(f.seq),
		MemoType:          memoType,
		MemoData:          memoData,
		PFTAbsoluteAmount: pft,
		TransactionResult: "tesSUCCESS",
	})
	return hash
}

func (f *fakeLedger) History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []database.DecodedMemo
	for _, m := range f.memos {
		if m.Account != account && m.Destination != account {
			continue
		}
		m.UserAccount = m.Destination
		m.DirectionalPFT = -m.PFTAbsoluteAmount
		if m.Account != account {
			m.UserAccount = m.Account
			m.DirectionalPFT = m.PFTAbsoluteAmount
		}
		out = append(out, m)
	}
	return out, nil
}

// fakeSender records every send and reflects it straight into the ledger.
type fakeSender struct {
	ledger *fakeLedger

	mu   sync.Mutex
	sent []sentMemo
}

type sentMemo struct {
	From, To, MemoType, MemoFormat, Payload string
	PFT                                     float64
}

func (s *fakeSender) SendMemo(ctx context.Context, wallet *xrpl.Wallet, destination, memoType, memoFormat, payload string, pftAmount float64, flags submitter.SendFlags) ([]*xrpl.SubmitResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, sentMemo{wallet.Address, destination, memoType, memoFormat, payload, pftAmount})
	s.mu.Unlock()

	hash := s.ledger.add(wallet.Address, destination, memoType, payload, pftAmount, time.Now().UTC())
	return []*xrpl.SubmitResult{{Hash: hash, EngineResult: "tesSUCCESS"}}, nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) lastSent() sentMemo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

// fakeProcessing is an in-memory processing_results table.
type fakeProcessing struct {
	mu      sync.Mutex
	results map[string]database.ProcessingResult
}

func newFakeProcessing() *fakeProcessing {
	return &fakeProcessing{results: make(map[string]database.ProcessingResult)}
}

func (p *fakeProcessing) Record(ctx context.Context, result database.ProcessingResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[result.TxHash] = result
	return nil
}

func (p *fakeProcessing) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.results[txHash]
	return ok, nil
}

// stubCompleter answers sync calls from a dispatch function and batch
// calls with a fixed response per request.
type stubCompleter struct {
	syncResponse  func(args llm.Args) string
	batchResponse string
}

func (s *stubCompleter) CompleteSync(ctx context.Context, args llm.Args) (string, error) {
	if s.syncResponse == nil {
		return "", nil
	}
	return s.syncResponse(args), nil
}

func (s *stubCompleter) CompleteBatch(ctx context.Context, batch map[string]llm.Args) (map[string]string, error) {
	out := make(map[string]string, len(batch))
	for id := range batch {
		out[id] = s.batchResponse
	}
	return out, nil
}

type stubDocs struct{}

func (stubDocs) FetchVerificationText(ctx context.Context, link string) (string, error) {
	return "", fmt.Errorf("no document")
}

type harness struct {
	orch   *Orchestrator
	ledger *fakeLedger
	sender *fakeSender
	stub   *stubCompleter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		QueueCycleSleep:       time.Millisecond,
		VerificationPollN:     2,
		VerificationInterval:  time.Millisecond,
		MinRewardPFT:          1,
		MaxRewardPFT:          1200,
		DailyRewardCeilingPFT: 1200,
		RewardWindowDays:      35,
	}
	node := &nodeconfig.NodeConfig{NodeName: "node1", NodeAddress: testNodeAddress}

	ledger := &fakeLedger{}
	sender := &fakeSender{ledger: ledger}
	stub := &stubCompleter{}

	registry := handshake.NewRegistry(ledger)
	registry.RegisterAutoAddress(testNodeAddress)

	wallets := map[string]*xrpl.Wallet{
		testNodeAddress: {Address: testNodeAddress, Entropy: []byte("0123456789abcdef")},
	}

	orch, err := NewOrchestrator(cfg, node, ledger, newFakeProcessing(), registry,
		stub, sender, wallets, WithDocFetcher(stubDocs{}))
	if err != nil {
		t.Fatalf("NewOrchestrator returned error: %v", err)
	}
	return &harness{orch: orch, ledger: ledger, sender: sender, stub: stub}
}

func TestProposalQueue(t *testing.T) {
	h := newHarness(t)
	taskID := "2025-01-01_10:00__AA00"
	h.ledger.add(testUserAddress, testNodeAddress, taskID,
		"REQUEST_POST_FIAT ___ build a report", 1, time.Now().Add(-time.Hour))

	h.stub.batchResponse = "Design schema .. 40\nWrite report outline .. 60\nDraft 1-pager .. 50"
	h.stub.syncResponse = func(args llm.Args) string { return "| BEST OUTPUT | 2 |" }

	if err := h.orch.runProposalQueue(context.Background()); err != nil {
		t.Fatalf("proposal queue failed: %v", err)
	}

	if h.sender.sentCount() != 1 {
		t.Fatalf("sent %d memos, want 1", h.sender.sentCount())
	}
	sent := h.sender.lastSent()
	if sent.Payload != "PROPOSED PF ___ Write report outline .. 60" {
		t.Errorf("proposal payload = %q", sent.Payload)
	}
	if sent.MemoType != taskID || sent.To != testUserAddress || sent.PFT != 1 {
		t.Errorf("proposal routing wrong: %+v", sent)
	}
	if sent.MemoFormat != "node1" {
		t.Errorf("memo format = %q, want node1", sent.MemoFormat)
	}

	// A second run must send nothing: the task is now in PROPOSAL state.
	if err := h.orch.runProposalQueue(context.Background()); err != nil {
		t.Fatalf("second proposal run failed: %v", err)
	}
	if h.sender.sentCount() != 1 {
		t.Fatalf("second run re-sent the proposal")
	}
}

func TestSelectorParseFailureDefaultsToFirstCandidate(t *testing.T) {
	h := newHarness(t)
	h.ledger.add(testUserAddress, testNodeAddress, "2025-01-01_10:00__AA00",
		"REQUEST_POST_FIAT ___ build a report", 1, time.Now().Add(-time.Hour))

	h.stub.batchResponse = "Design schema .. 40\nWrite report outline .. 60"
	h.stub.syncResponse = func(args llm.Args) string { return "garbled selector output" }

	if err := h.orch.runProposalQueue(context.Background()); err != nil {
		t.Fatalf("proposal queue failed: %v", err)
	}
	if got := h.sender.lastSent().Payload; got != "PROPOSED PF ___ Design schema .. 40" {
		t.Errorf("default selection payload = %q", got)
	}
}

func TestAcceptanceIsAcknowledgedSilently(t *testing.T) {
	h := newHarness(t)
	taskID := "2025-01-01_10:00__AA00"
	now := time.Now()
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "REQUEST_POST_FIAT ___ build a report", 1, now.Add(-2*time.Hour))
	h.ledger.add(testNodeAddress, testUserAddress, taskID, "PROPOSED PF ___ Write report outline .. 60", 1, now.Add(-time.Hour))
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "ACCEPTANCE REASON ___ on it", 1, now.Add(-30*time.Minute))

	if err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if h.sender.sentCount() != 0 {
		t.Fatalf("acceptance should produce no node-sent tx, got %d", h.sender.sentCount())
	}
}

func TestVerificationThenReward(t *testing.T) {
	h := newHarness(t)
	taskID := "2025-01-01_10:00__AA00"
	now := time.Now()
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "REQUEST_POST_FIAT ___ build a report", 1, now.Add(-5*time.Hour))
	h.ledger.add(testNodeAddress, testUserAddress, taskID, "PROPOSED PF ___ Write report outline .. 60", 1, now.Add(-4*time.Hour))
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "ACCEPTANCE REASON ___ on it", 1, now.Add(-3*time.Hour))
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "COMPLETION JUSTIFICATION ___ did X", 1, now.Add(-2*time.Hour))

	h.stub.syncResponse = func(args llm.Args) string { return "| Verifying Question | show me X |" }
	if err := h.orch.runVerificationQueue(context.Background()); err != nil {
		t.Fatalf("verification queue failed: %v", err)
	}
	sent := h.sender.lastSent()
	if sent.Payload != "VERIFICATION PROMPT ___ show me X" || sent.MemoType != taskID {
		t.Fatalf("verification prompt wrong: %+v", sent)
	}

	// The response must postdate the prompt the node just sent.
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "VERIFICATION RESPONSE ___ here is X", 1, time.Now().Add(time.Minute))

	h.stub.syncResponse = func(args llm.Args) string {
		return "| Summary Judgment | good | Total PFT Rewarded | 45 |"
	}
	if err := h.orch.runRewardQueue(context.Background()); err != nil {
		t.Fatalf("reward queue failed: %v", err)
	}
	sent = h.sender.lastSent()
	if sent.Payload != "REWARD RESPONSE __ good" {
		t.Errorf("reward payload = %q", sent.Payload)
	}
	if sent.PFT != 45 {
		t.Errorf("reward amount = %v, want 45", sent.PFT)
	}

	// Subsequent cycles send nothing: the task is terminal.
	before := h.sender.sentCount()
	if err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("post-reward cycle failed: %v", err)
	}
	if h.sender.sentCount() != before {
		t.Fatalf("terminal task still produced sends")
	}
}

func TestRewardClampedToProposedValue(t *testing.T) {
	h := newHarness(t)
	taskID := "2025-01-01_10:00__AA00"
	now := time.Now()
	h.ledger.add(testNodeAddress, testUserAddress, taskID, "PROPOSED PF ___ small task .. 60", 1, now.Add(-3*time.Hour))
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "COMPLETION JUSTIFICATION ___ did it", 1, now.Add(-2*time.Hour))
	h.ledger.add(testNodeAddress, testUserAddress, taskID, "VERIFICATION PROMPT ___ prove it", 1, now.Add(-90*time.Minute))
	h.ledger.add(testUserAddress, testNodeAddress, taskID, "VERIFICATION RESPONSE ___ proof", 1, now.Add(-time.Hour))

	h.stub.syncResponse = func(args llm.Args) string {
		return "| Summary Judgment | generous | Total PFT Rewarded | 500 |"
	}
	if err := h.orch.runRewardQueue(context.Background()); err != nil {
		t.Fatalf("reward queue failed: %v", err)
	}
	if got := h.sender.lastSent().PFT; got != 60 {
		t.Fatalf("reward = %v, want clamp to proposed 60", got)
	}
}

func TestInitiationQueue(t *testing.T) {
	h := newHarness(t)
	h.ledger.add(testUserAddress, testNodeAddress, "INITIATION_RITE", "I will ship daily", 1, time.Now().Add(-time.Hour))

	h.stub.syncResponse = func(args llm.Args) string {
		return "| Reward | 25 | Justification | concise, concrete |"
	}
	if err := h.orch.runInitiationQueue(context.Background()); err != nil {
		t.Fatalf("initiation queue failed: %v", err)
	}

	sent := h.sender.lastSent()
	if sent.MemoType != "INITIATION_REWARD" || sent.PFT != 25 {
		t.Fatalf("initiation reward wrong: %+v", sent)
	}
	if sent.Payload != "concise, concrete" {
		t.Errorf("justification = %q", sent.Payload)
	}

	// Re-run produces nothing (at most one initiation reward per user).
	if err := h.orch.runInitiationQueue(context.Background()); err != nil {
		t.Fatalf("second initiation run failed: %v", err)
	}
	if h.sender.sentCount() != 1 {
		t.Fatalf("initiation reward sent twice")
	}
}

func TestInitiationRejectsShortRite(t *testing.T) {
	h := newHarness(t)
	h.ledger.add(testUserAddress, testNodeAddress, "INITIATION_RITE", "  short  ", 1, time.Now().Add(-time.Hour))

	if err := h.orch.runInitiationQueue(context.Background()); err != nil {
		t.Fatalf("initiation queue failed: %v", err)
	}
	if h.sender.sentCount() != 0 {
		t.Fatalf("short rite should be ignored")
	}
}

func TestHandshakeAutoResponse(t *testing.T) {
	h := newHarness(t)
	h.ledger.add(testUserAddress, testNodeAddress, "HANDSHAKE",
		strings.Repeat("ab", 32), 1, time.Now().Add(-time.Hour))

	if err := h.orch.runHandshakeQueue(context.Background()); err != nil {
		t.Fatalf("handshake queue failed: %v", err)
	}

	sent := h.sender.lastSent()
	if sent.MemoType != "HANDSHAKE" || sent.To != testUserAddress || sent.PFT != 1 {
		t.Fatalf("handshake reply wrong: %+v", sent)
	}
	if len(sent.Payload) != 64 {
		t.Errorf("handshake payload should be a 32-byte hex key, got %d chars", len(sent.Payload))
	}

	// Re-run sends nothing: the reply is now on the ledger.
	if err := h.orch.runHandshakeQueue(context.Background()); err != nil {
		t.Fatalf("second handshake run failed: %v", err)
	}
	if h.sender.sentCount() != 1 {
		t.Fatalf("handshake replied twice")
	}
}
