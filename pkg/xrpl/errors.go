package xrpl

import "errors"

// Sentinel errors for ledger client operations.
var (
	// ErrLedgerUnavailable is returned when every configured endpoint
	// fails to answer a request.
	ErrLedgerUnavailable = errors.New("ledger unavailable: all endpoints failed")

	// ErrSubmissionRejected is returned when submit's preliminary
	// engine_result is neither tesSUCCESS nor a ter*/tel* code.
	ErrSubmissionRejected = errors.New("transaction submission rejected")

	// ErrInsufficientXRPBalance is returned when an account's XRP
	// balance is below the minimum the submitter requires to operate.
	ErrInsufficientXRPBalance = errors.New("insufficient XRP balance")

	// ErrAccountNotFound is returned when account_info reports the
	// account does not exist on the ledger (actNotFound).
	ErrAccountNotFound = errors.New("account not found")
)
