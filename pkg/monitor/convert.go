// convert.go translates wire-format transactions (account_tx pages and
// subscribe stream events) into tx_cache rows, extracting the indexed
// memo fields and the PFT amount.
package monitor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// txFields is the subset of a transaction's JSON the cache indexes.
type txFields struct {
	Account     string             `json:"Account"`
	Destination string             `json:"Destination"`
	Amount      json.RawMessage    `json:"Amount"`
	Memos       []xrpl.MemoWrapper `json:"Memos"`
	Hash        string             `json:"hash"`
}

// ConvertRecord converts one account_tx/stream record into a tx_cache
// row. pftIssuer identifies which issued-currency amounts count as PFT.
func ConvertRecord(rec xrpl.TxRecord, pftIssuer string) (database.Transaction, error) {
	var fields txFields
	if err := json.Unmarshal(rec.Tx, &fields); err != nil {
		return database.Transaction{}, fmt.Errorf("failed to parse transaction JSON: %w", err)
	}

	hash := rec.Hash
	if hash == "" {
		hash = fields.Hash
	}
	if hash == "" {
		return database.Transaction{}, fmt.Errorf("transaction record carries no hash")
	}

	var meta xrpl.TxMeta
	if len(rec.Meta) > 0 {
		if err := json.Unmarshal(rec.Meta, &meta); err != nil {
			return database.Transaction{}, fmt.Errorf("failed to parse transaction meta: %w", err)
		}
	}

	closeTime := time.Now().UTC()
	if rec.CloseTimeISO != "" {
		parsed, err := time.Parse(time.RFC3339, rec.CloseTimeISO)
		if err != nil {
			return database.Transaction{}, fmt.Errorf("unparseable close time %q: %w", rec.CloseTimeISO, err)
		}
		closeTime = parsed
	}

	tx := database.Transaction{
		Hash:              hash,
		Account:           fields.Account,
		LedgerIndex:       rec.LedgerIndex,
		CloseTimeISO:      closeTime,
		TxJSON:            rec.Tx,
		Meta:              rec.Meta,
		Validated:         rec.Validated,
		TransactionResult: meta.TransactionResult,
	}
	if fields.Destination != "" {
		tx.Destination.String = fields.Destination
		tx.Destination.Valid = true
	}

	if len(fields.Memos) > 0 {
		m := fields.Memos[0].Memo
		if m.MemoType != "" {
			tx.MemoTypeHex.String, tx.MemoTypeHex.Valid = m.MemoType, true
		}
		if m.MemoFormat != "" {
			tx.MemoFormatHex.String, tx.MemoFormatHex.Valid = m.MemoFormat, true
		}
		if m.MemoData != "" {
			tx.MemoDataHex.String, tx.MemoDataHex.Valid = m.MemoData, true
		}
	}

	if amount, ok := pftAmount(fields.Amount, pftIssuer); ok {
		tx.PFTAmount.Float64, tx.PFTAmount.Valid = amount, true
	}
	return tx, nil
}

// pftAmount extracts the PFT value from a raw Amount field, if the
// amount is an issued-currency object for the configured issuer.
func pftAmount(raw json.RawMessage, pftIssuer string) (float64, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return 0, false
	}
	var issued xrpl.IssuedAmount
	if err := json.Unmarshal(raw, &issued); err != nil {
		return 0, false
	}
	if issued.Currency != "PFT" || issued.Issuer != pftIssuer {
		return 0, false
	}
	v, err := strconv.ParseFloat(issued.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ConvertStreamEvent converts a subscribe-stream transaction event into
// a tx_cache row.
func ConvertStreamEvent(e *xrpl.TransactionStreamEvent, pftIssuer string) (database.Transaction, error) {
	return ConvertRecord(xrpl.TxRecord{
		Hash:        e.Hash,
		LedgerIndex: e.LedgerIndex,
		Validated:   e.Validated,
		Tx:          e.Transaction,
		Meta:        e.Meta,
	}, pftIssuer)
}
