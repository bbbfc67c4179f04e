package queue

import "errors"

// Sentinel errors for queue processing.
var (
	// ErrVerificationTimeout is returned when a sent response cannot be
	// observed in the cache within the poll budget. The work item stays
	// eligible and is retried on the next cycle.
	ErrVerificationTimeout = errors.New("on-ledger confirmation not observed in time")

	// ErrNoWallet is returned when a queue needs to send from an
	// address the orchestrator holds no wallet for.
	ErrNoWallet = errors.New("no wallet loaded for address")
)
