package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/postfiat/taskengine/pkg/memo"
)

// TransactionRepository provides access to tx_cache.
type TransactionRepository struct {
	client *Client
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(client *Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

// BatchInsert idempotently inserts transactions into tx_cache within a
// single transaction, skipping rows whose hash already exists. It returns
// the number of newly inserted rows.
func (r *TransactionRepository) BatchInsert(ctx context.Context, txs []Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Raw().PrepareContext(ctx, `
		INSERT INTO tx_cache (
			hash, account, destination, ledger_index, close_time_iso,
			tx_json, meta, validated, transaction_result,
			memo_type_hex, memo_format_hex, memo_data_hex, pft_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (hash) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range txs {
		result, err := stmt.ExecContext(ctx,
			t.Hash, t.Account, t.Destination, t.LedgerIndex, t.CloseTimeISO,
			t.TxJSON, t.Meta, t.Validated, t.TransactionResult,
			t.MemoTypeHex, t.MemoFormatHex, t.MemoDataHex, t.PFTAmount,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transaction %s: %w", t.Hash, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return inserted, nil
}

// History returns the decoded_memos projection for account: every
// transaction in which account appears as either sender or destination,
// ordered by datetime, with memo fields hex-decoded and directional_pft
// signed from account's perspective. If pftOnly is true, rows with no
// PFT amount are excluded.
func (r *TransactionRepository) History(ctx context.Context, account string, pftOnly bool) ([]DecodedMemo, error) {
	query := `
		SELECT hash, account, destination, ledger_index, close_time_iso,
		       transaction_result, memo_type_hex, memo_format_hex, memo_data_hex,
		       COALESCE(pft_amount, 0)
		FROM tx_cache
		WHERE (account = $1 OR destination = $1)`
	if pftOnly {
		query += ` AND pft_amount IS NOT NULL`
	}
	query += ` ORDER BY close_time_iso ASC`

	rows, err := r.client.QueryContext(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", account, err)
	}
	defer rows.Close()

	var out []DecodedMemo
	for rows.Next() {
		var (
			hash, txAccount, transactionResult      string
			destination                             sql.NullString
			memoTypeHex, memoFormatHex, memoDataHex sql.NullString
			ledgerIndex                             int64
			closeTime                               sql.NullTime
			pftAmount                               float64
		)
		if err := rows.Scan(&hash, &txAccount, &destination, &ledgerIndex, &closeTime,
			&transactionResult, &memoTypeHex, &memoFormatHex, &memoDataHex, &pftAmount); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		userAccount := destination.String
		directional := pftAmount
		if txAccount != account {
			userAccount = txAccount
			// account is the destination: it received the funds.
		} else {
			directional = -pftAmount
		}

		decodedType, _ := memo.DecodeField(memoTypeHex.String)
		decodedFormat, _ := memo.DecodeField(memoFormatHex.String)
		decodedData, _ := memo.DecodeField(memoDataHex.String)

		out = append(out, DecodedMemo{
			Hash:              hash,
			Account:           txAccount,
			Destination:       destination.String,
			UserAccount:       userAccount,
			Datetime:          closeTime.Time,
			LedgerIndex:       ledgerIndex,
			MemoType:          decodedType,
			MemoFormat:        decodedFormat,
			MemoData:          decodedData,
			DirectionalPFT:    directional,
			PFTAbsoluteAmount: pftAmount,
			TransactionResult: transactionResult,
		})
	}
	return out, rows.Err()
}

// UnprocessedTransactions returns tx_cache rows with no processing_results
// entry, ordered by orderBy (a column name, trusted only when supplied by
// internal callers — never from external input), limited to limit rows.
func (r *TransactionRepository) UnprocessedTransactions(ctx context.Context, orderBy string, limit int) ([]Transaction, error) {
	if orderBy == "" {
		orderBy = "ledger_index"
	}
	query := fmt.Sprintf(`
		SELECT t.hash, t.account, t.destination, t.ledger_index, t.close_time_iso,
		       t.tx_json, t.meta, t.validated, t.transaction_result,
		       t.memo_type_hex, t.memo_format_hex, t.memo_data_hex, t.pft_amount
		FROM tx_cache t
		LEFT JOIN processing_results p ON p.tx_hash = t.hash
		WHERE p.tx_hash IS NULL
		ORDER BY t.%s ASC
		LIMIT $1`, orderBy)

	rows, err := r.client.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.Hash, &t.Account, &t.Destination, &t.LedgerIndex, &t.CloseTimeISO,
			&t.TxJSON, &t.Meta, &t.Validated, &t.TransactionResult,
			&t.MemoTypeHex, &t.MemoFormatHex, &t.MemoDataHex, &t.PFTAmount); err != nil {
			return nil, fmt.Errorf("failed to scan unprocessed transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByHash returns a single transaction by its hash.
func (r *TransactionRepository) GetByHash(ctx context.Context, hash string) (*Transaction, error) {
	var t Transaction
	row := r.client.QueryRowContext(ctx, `
		SELECT hash, account, destination, ledger_index, close_time_iso,
		       tx_json, meta, validated, transaction_result,
		       memo_type_hex, memo_format_hex, memo_data_hex, pft_amount
		FROM tx_cache WHERE hash = $1`, hash)

	err := row.Scan(&t.Hash, &t.Account, &t.Destination, &t.LedgerIndex, &t.CloseTimeISO,
		&t.TxJSON, &t.Meta, &t.Validated, &t.TransactionResult,
		&t.MemoTypeHex, &t.MemoFormatHex, &t.MemoDataHex, &t.PFTAmount)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}
	return &t, nil
}
