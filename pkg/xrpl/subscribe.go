// subscribe.go implements the validated-ledger WebSocket stream:
// subscribe, reconnect with exponential backoff starting at 1s and
// capping at 60s, and deliver ledgerClosed/transaction events on a
// channel.
package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialReconnectBackoff = 1 * time.Second
	maxReconnectBackoff     = 60 * time.Second
)

// StreamEvent is one message delivered by the subscription: exactly one
// of LedgerClosed or Transaction is non-nil, or Reconnected is set to
// tell consumers the stream dropped and they may have missed ledgers.
type StreamEvent struct {
	LedgerClosed *LedgerClosedEvent
	Transaction  *TransactionStreamEvent
	Reconnected  bool
}

// Subscriber maintains a long-lived WebSocket subscription to validated
// ledgers and transactions, reconnecting on disconnect.
type Subscriber struct {
	endpoints []string
	logger    *log.Logger

	connMu sync.RWMutex
	conn   *websocket.Conn

	events chan StreamEvent
	closed atomic.Bool
	done   chan struct{}
}

// NewSubscriber constructs a Subscriber over the given WebSocket
// endpoints, tried in order on each (re)connect attempt.
func NewSubscriber(endpoints []string, logger *log.Logger) (*Subscriber, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one WebSocket endpoint is required")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[XRPL] ", log.LstdFlags)
	}
	return &Subscriber{
		endpoints: endpoints,
		logger:    logger,
		events:    make(chan StreamEvent, 256),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel on which stream events are delivered.
func (s *Subscriber) Events() <-chan StreamEvent {
	return s.events
}

// Start connects and begins delivering events until ctx is canceled or
// Close is called.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to ledger stream: %w", err)
	}
	go s.readLoop(ctx)
	return nil
}

// Close terminates the subscription.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Subscriber) connect(ctx context.Context) error {
	var lastErr error
	for _, endpoint := range s.endpoints {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			lastErr = err
			s.logger.Printf("failed to dial %s: %v", endpoint, err)
			continue
		}

		sub := map[string]interface{}{
			"id":      1,
			"command": "subscribe",
			"streams": []string{"ledger", "transactions"},
		}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			lastErr = err
			continue
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		s.logger.Printf("subscribed to ledger stream at %s", endpoint)
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, lastErr)
	}
	return ErrLedgerUnavailable
}

func (s *Subscriber) readLoop(ctx context.Context) {
	for {
		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn == nil {
			return
		}

		var msg json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Printf("ledger stream read error: %v", err)
			if !s.reconnect(ctx) {
				return
			}
			select {
			case s.events <- StreamEvent{Reconnected: true}:
			case <-s.done:
				return
			default:
			}
			continue
		}

		event, ok := parseStreamMessage(msg)
		if !ok {
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		default:
			s.logger.Printf("ledger stream event dropped: channel full")
		}
	}
}

// reconnect retries connect with exponential backoff from
// initialReconnectBackoff up to maxReconnectBackoff, returning false only
// if the subscriber was closed or ctx was canceled during the wait.
func (s *Subscriber) reconnect(ctx context.Context) bool {
	backoff := initialReconnectBackoff
	for {
		select {
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Printf("reconnect failed: %v", err)
			backoff *= 2
			if backoff > maxReconnectBackoff {
				backoff = maxReconnectBackoff
			}
			continue
		}
		return true
	}
}

func parseStreamMessage(msg json.RawMessage) (StreamEvent, bool) {
	var discriminator struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &discriminator); err != nil {
		return StreamEvent{}, false
	}

	switch discriminator.Type {
	case "ledgerClosed":
		var e LedgerClosedEvent
		if err := json.Unmarshal(msg, &e); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{LedgerClosed: &e}, true
	case "transaction":
		var e TransactionStreamEvent
		if err := json.Unmarshal(msg, &e); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Transaction: &e}, true
	default:
		return StreamEvent{}, false
	}
}
