// verify.go implements verification-of-send: after
// submitting a response, a queue does not trust the submit result; it
// polls the cache until the reply is observed on-ledger, and only then
// records the processing result.
package queue

import (
	"context"
	"time"

	"github.com/postfiat/taskengine/pkg/database"
)

// confirmPredicate inspects the node's refreshed history and reports
// whether a sent reply has landed in the cache.
type confirmPredicate func(history []database.DecodedMemo) bool

// confirmSend polls the node's history up to cfg.VerificationPollN times
// at cfg.VerificationInterval until predicate holds. On exhaustion it
// returns ErrVerificationTimeout; the work item remains eligible and is
// retried on the next cycle.
func (o *Orchestrator) confirmSend(ctx context.Context, queueName string, predicate confirmPredicate) error {
	return o.confirmSendFrom(ctx, queueName, o.node.NodeAddress, predicate)
}

// confirmSendFrom is confirmSend polling an arbitrary channel address's
// history (the handshake queue also sends from the remembrancer).
func (o *Orchestrator) confirmSendFrom(ctx context.Context, queueName, account string, predicate confirmPredicate) error {
	attempts := o.cfg.VerificationPollN
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.VerificationInterval):
			}
		}

		history, err := o.history.History(ctx, account, false)
		if err != nil {
			o.logger.Printf("%s queue: history refresh failed during confirmation: %v", queueName, err)
			continue
		}
		if predicate(history) {
			return nil
		}
	}

	if o.metrics != nil {
		o.metrics.VerificationTimeouts.WithLabelValues(queueName).Inc()
	}
	return ErrVerificationTimeout
}

// sentByNode reports whether memo m is a node-originated reply to
// userAccount.
func (o *Orchestrator) sentByNode(m database.DecodedMemo, userAccount string) bool {
	return m.Account == o.node.NodeAddress && m.Destination == userAccount
}
