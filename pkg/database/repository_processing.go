package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ProcessingRepository provides access to processing_results.
type ProcessingRepository struct {
	client *Client
}

// NewProcessingRepository constructs a ProcessingRepository.
func NewProcessingRepository(client *Client) *ProcessingRepository {
	return &ProcessingRepository{client: client}
}

// Record writes a processing_results row for txHash, marking it as
// handled so it is excluded from future UnprocessedTransactions scans.
// Recording is itself idempotent: a second call for the same hash
// overwrites the prior result rather than erroring, since a queue that
// crashed after sending a reply but before recording must be able to
// retry safely.
func (r *ProcessingRepository) Record(ctx context.Context, result ProcessingResult) error {
	_, err := r.client.ExecContext(ctx, `
		INSERT INTO processing_results (tx_hash, processed, rule_name, response_tx_hash, notes, ts)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tx_hash) DO UPDATE SET
			processed = excluded.processed,
			rule_name = excluded.rule_name,
			response_tx_hash = excluded.response_tx_hash,
			notes = excluded.notes,
			ts = excluded.ts`,
		result.TxHash, result.Processed, result.RuleName, result.ResponseTxHash, result.Notes)
	if err != nil {
		return fmt.Errorf("failed to record processing result for %s: %w", result.TxHash, err)
	}
	return nil
}

// Get returns the processing_results row for txHash.
func (r *ProcessingRepository) Get(ctx context.Context, txHash string) (*ProcessingResult, error) {
	var pr ProcessingResult
	row := r.client.QueryRowContext(ctx, `
		SELECT tx_hash, processed, rule_name, response_tx_hash, notes, ts
		FROM processing_results WHERE tx_hash = $1`, txHash)

	err := row.Scan(&pr.TxHash, &pr.Processed, &pr.RuleName, &pr.ResponseTxHash, &pr.Notes, &pr.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrProcessingResultNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get processing result for %s: %w", txHash, err)
	}
	return &pr, nil
}

// IsProcessed reports whether txHash has already been recorded.
func (r *ProcessingRepository) IsProcessed(ctx context.Context, txHash string) (bool, error) {
	_, err := r.Get(ctx, txHash)
	if err == ErrProcessingResultNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
