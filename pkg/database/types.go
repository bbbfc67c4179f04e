package database

import (
	"database/sql"
	"time"
)

// Transaction is one row of tx_cache: a ledger transaction as observed by
// the monitor or a history backfill, stored verbatim alongside the
// hex-encoded memo fields extracted from it for indexing.
type Transaction struct {
	Hash              string
	Account           string
	Destination       sql.NullString
	LedgerIndex       int64
	CloseTimeISO      time.Time
	TxJSON            []byte // raw JSON of the transaction
	Meta              []byte // raw JSON of the transaction metadata
	Validated         bool
	TransactionResult string
	MemoTypeHex       sql.NullString
	MemoFormatHex     sql.NullString
	MemoDataHex       sql.NullString
	PFTAmount         sql.NullFloat64
}

// ProcessingResult is one row of processing_results, recording that a
// transaction has (or has not) been answered, and what was sent back.
type ProcessingResult struct {
	TxHash         string
	Processed      bool
	RuleName       string
	ResponseTxHash sql.NullString
	Notes          sql.NullString
	Timestamp      time.Time
}

// DecodedMemo is one row of the decoded_memos projection: a
// transaction with its memo fields hex-decoded and its PFT amount signed
// relative to the account the projection was built for.
type DecodedMemo struct {
	Hash              string
	Account           string
	Destination       string
	UserAccount       string // the counterparty of the reference account
	Datetime          time.Time
	LedgerIndex       int64
	MemoType          string
	MemoFormat        string
	MemoData          string
	DirectionalPFT    float64 // positive if the reference account received, negative if it sent
	PFTAbsoluteAmount float64
	TransactionResult string
}
