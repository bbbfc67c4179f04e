package xrpl

import "encoding/json"

// Memo is one ledger memo object: three hex-encoded UTF-8 fields.
type Memo struct {
	MemoType   string `json:"MemoType,omitempty"`
	MemoFormat string `json:"MemoFormat,omitempty"`
	MemoData   string `json:"MemoData,omitempty"`
}

// MemoWrapper matches the ledger's { "Memo": {...} } wrapping.
type MemoWrapper struct {
	Memo Memo `json:"Memo"`
}

// IssuedAmount is a non-XRP currency amount.
type IssuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// Payment is a ledger Payment transaction carrying at most one memo.
// Amount is either a drops string (XRP) or an IssuedAmount
// (PFT or any other issued currency), so it is typed interface{} and
// built by the AmountXRP/AmountIssued helpers below.
type Payment struct {
	TransactionType    string        `json:"TransactionType"`
	Account            string        `json:"Account"`
	Destination        string        `json:"Destination"`
	Amount             interface{}   `json:"Amount"`
	Memos              []MemoWrapper `json:"Memos,omitempty"`
	DestinationTag     *uint32       `json:"DestinationTag,omitempty"`
	Sequence           uint32        `json:"Sequence,omitempty"`
	Fee                string        `json:"Fee,omitempty"`
	LastLedgerSequence uint32        `json:"LastLedgerSequence,omitempty"`
	SigningPubKey      string        `json:"SigningPubKey,omitempty"`
	TxnSignature       string        `json:"TxnSignature,omitempty"`
}

// AmountXRP formats an XRP amount as the ledger's drops string.
func AmountXRP(drops uint64) string {
	return itoa64(drops)
}

// AmountIssued formats a PFT/issued-currency amount.
func AmountIssued(currency, issuer, value string) IssuedAmount {
	return IssuedAmount{Currency: currency, Issuer: issuer, Value: value}
}

func itoa64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// TxMeta is the subset of transaction metadata the engine cares about.
type TxMeta struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount,omitempty"`
}

// TxRecord is one transaction as returned by account_tx / submit_and_wait
// / the subscribe stream: the signed transaction plus its validated
// metadata and ledger placement.
type TxRecord struct {
	Hash         string          `json:"hash"`
	LedgerIndex  int64           `json:"ledger_index"`
	CloseTimeISO string          `json:"close_time_iso,omitempty"`
	Validated    bool            `json:"validated"`
	Tx           json.RawMessage `json:"tx_json"`
	Meta         json.RawMessage `json:"meta"`
}

// AccountInfo is the result of account_info.
type AccountInfo struct {
	Account    string `json:"Account"`
	Balance    string `json:"Balance"` // drops, as a decimal string
	Flags      uint32 `json:"Flags"`
	Sequence   uint32 `json:"Sequence"`
	OwnerCount uint32 `json:"OwnerCount"`
}

// TrustLine is one row of account_lines.
type TrustLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Limit    string `json:"limit"`
}

// SubmitResult is the result of submit_and_wait.
type SubmitResult struct {
	Hash              string `json:"hash"`
	EngineResult      string `json:"engine_result"`
	TransactionResult string `json:"transaction_result"` // from validated meta, once confirmed
	Validated         bool   `json:"validated"`
}

// LedgerClosedEvent is one "ledgerClosed" stream message.
type LedgerClosedEvent struct {
	LedgerIndex int64  `json:"ledger_index"`
	LedgerHash  string `json:"ledger_hash"`
	TxnCount    int    `json:"txn_count"`
}

// TransactionStreamEvent is one "transaction" stream message.
type TransactionStreamEvent struct {
	Validated   bool            `json:"validated"`
	LedgerIndex int64           `json:"ledger_index"`
	Transaction json.RawMessage `json:"transaction"`
	Meta        json.RawMessage `json:"meta"`
	Hash        string          `json:"hash"`
}
