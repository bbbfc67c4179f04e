package database

import "errors"

// Sentinel errors for transaction cache operations.
var (
	// ErrTransactionNotFound is returned when a lookup by hash finds
	// no matching row in tx_cache.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrProcessingResultNotFound is returned when a tx hash has no
	// recorded processing_results row.
	ErrProcessingResultNotFound = errors.New("processing result not found")
)
