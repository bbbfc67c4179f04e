package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/postfiat/taskengine/pkg/database"
)

type stubSource struct {
	memos []database.DecodedMemo
}

func (s *stubSource) History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error) {
	return s.memos, nil
}

func handshakeMemo(ts time.Time, from, to, key string) database.DecodedMemo {
	return database.DecodedMemo{
		Account:     from,
		Destination: to,
		UserAccount: from,
		Datetime:    ts,
		MemoType:    "HANDSHAKE",
		MemoData:    key,
	}
}

func TestGetReadsBothDirections(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	source := &stubSource{memos: []database.DecodedMemo{
		handshakeMemo(base, "rUSER", "rNODE", "userkey1"),
		handshakeMemo(base.Add(time.Minute), "rNODE", "rUSER", "nodekey1"),
		handshakeMemo(base.Add(2*time.Minute), "rUSER", "rNODE", "userkey2"),
	}}

	r := NewRegistry(source)
	keys, err := r.Get(context.Background(), "rNODE", "rUSER")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if keys.ChannelKey != "nodekey1" {
		t.Errorf("ChannelKey = %q, want nodekey1", keys.ChannelKey)
	}
	// The latest key in each direction wins.
	if keys.CounterpartyKey != "userkey2" {
		t.Errorf("CounterpartyKey = %q, want userkey2", keys.CounterpartyKey)
	}
	if !keys.Complete() {
		t.Errorf("expected a complete handshake pair")
	}
}

func TestGetIncompletePair(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	source := &stubSource{memos: []database.DecodedMemo{
		handshakeMemo(base, "rUSER", "rNODE", "userkey"),
	}}

	r := NewRegistry(source)
	keys, err := r.Get(context.Background(), "rNODE", "rUSER")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if keys.Complete() {
		t.Fatalf("pair should be incomplete without the channel's own key")
	}
	if keys.CounterpartyKey != "userkey" {
		t.Errorf("CounterpartyKey = %q, want userkey", keys.CounterpartyKey)
	}
}

func TestPendingFor(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	source := &stubSource{memos: []database.DecodedMemo{
		handshakeMemo(base, "rALICE", "rNODE", "alicekey"),
		handshakeMemo(base.Add(time.Minute), "rBOB", "rNODE", "bobkey"),
		handshakeMemo(base.Add(2*time.Minute), "rNODE", "rALICE", "nodekey"),
	}}

	r := NewRegistry(source)
	pending, err := r.PendingFor(context.Background(), "rNODE")
	if err != nil {
		t.Fatalf("PendingFor returned error: %v", err)
	}
	if len(pending) != 1 || pending[0] != "rBOB" {
		t.Fatalf("PendingFor = %v, want [rBOB]", pending)
	}
}

func TestAutoAddresses(t *testing.T) {
	r := NewRegistry(&stubSource{})
	r.RegisterAutoAddress("rNODE")
	r.RegisterAutoAddress("rREMEMBRANCER")

	addrs := r.AutoAddresses()
	if len(addrs) != 2 {
		t.Fatalf("AutoAddresses = %v, want 2 entries", addrs)
	}
}
