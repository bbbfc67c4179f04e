// handshake.go implements the handshake queue: for each
// auto-respond address the node owns, answer every unanswered incoming
// HANDSHAKE with our own ECDH public key and a 1 PFT notification dust.
package queue

import (
	"context"
	"fmt"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/memo"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/taskstate"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// handshakeWork is one unanswered incoming handshake.
type handshakeWork struct {
	channelAddress string
	counterparty   string
	incoming       database.DecodedMemo
}

func (o *Orchestrator) runHandshakeQueue(ctx context.Context) error {
	for _, address := range o.handshakes.AutoAddresses() {
		wallet, ok := o.wallets[address]
		if !ok {
			o.logger.Printf("auto-handshake address %s has no loaded wallet, skipping", address)
			continue
		}

		work, err := o.scanHandshakes(ctx, address)
		if err != nil {
			o.logger.Printf("handshake scan for %s failed: %v", address, err)
			continue
		}

		for _, w := range work {
			if o.isProcessed(ctx, w.incoming.Hash) {
				continue
			}
			if err := o.respondHandshake(ctx, wallet, w); err != nil {
				o.logger.Printf("handshake reply to %s failed: %v", w.counterparty, err)
			}
		}
	}
	return nil
}

// scanHandshakes finds incoming HANDSHAKE memos to address that address
// has not answered, keeping the earliest unanswered memo per
// counterparty as the work item.
func (o *Orchestrator) scanHandshakes(ctx context.Context, address string) ([]handshakeWork, error) {
	history, err := o.history.History(ctx, address, false)
	if err != nil {
		return nil, err
	}

	firstIncoming := make(map[string]database.DecodedMemo)
	replied := make(map[string]bool)
	var order []string

	for _, m := range history {
		if m.MemoType != taskstate.MemoTypeHandshake {
			continue
		}
		switch {
		case m.Destination == address:
			if _, seen := firstIncoming[m.Account]; !seen {
				firstIncoming[m.Account] = m
				order = append(order, m.Account)
			}
		case m.Account == address:
			replied[m.Destination] = true
		}
	}

	var out []handshakeWork
	for _, counterparty := range order {
		if replied[counterparty] {
			continue
		}
		out = append(out, handshakeWork{
			channelAddress: address,
			counterparty:   counterparty,
			incoming:       firstIncoming[counterparty],
		})
	}
	return out, nil
}

func (o *Orchestrator) respondHandshake(ctx context.Context, wallet *xrpl.Wallet, w handshakeWork) error {
	publicKey, err := memo.PublicKeyFromSeed(wallet.Entropy)
	if err != nil {
		return fmt.Errorf("failed to derive handshake key: %w", err)
	}

	results, err := o.sender.SendMemo(ctx, wallet, w.counterparty,
		taskstate.MemoTypeHandshake, o.node.NodeName, publicKey, 1, submitter.SendFlags{})
	if err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	err = o.confirmSendFrom(ctx, "handshake", w.channelAddress, func(history []database.DecodedMemo) bool {
		for _, m := range history {
			if m.MemoType == taskstate.MemoTypeHandshake &&
				m.Account == w.channelAddress && m.Destination == w.counterparty {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}

	o.record(ctx, w.incoming.Hash, "handshake", lastResponseHash(results), "")
	return nil
}
