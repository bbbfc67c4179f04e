package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/postfiat/taskengine/pkg/config"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("TASKENGINE_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	cfg := &config.Config{
		DatabaseURL:         connStr,
		DatabaseMaxConns:    5,
		DatabaseMinConns:    1,
		DatabaseMaxIdleTime: 300,
		DatabaseMaxLifetime: 3600,
	}

	var err error
	testClient, err = NewClient(cfg)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := testClient.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	testClient.Close()
	os.Exit(code)
}

func TestBatchInsertIsIdempotent(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	repo := NewTransactionRepository(testClient)
	ctx := context.Background()

	tx := Transaction{
		Hash:              "TESTHASH0000000000000000000000000000000000000000000000000001",
		Account:           "rSender111111111111111111111111",
		Destination:       sql.NullString{String: "rDest22222222222222222222222222", Valid: true},
		LedgerIndex:       12345,
		CloseTimeISO:      time.Now().UTC(),
		TxJSON:            []byte(`{}`),
		Meta:              []byte(`{}`),
		Validated:         true,
		TransactionResult: "tesSUCCESS",
	}

	n, err := repo.BatchInsert(ctx, []Transaction{tx})
	if err != nil {
		t.Fatalf("BatchInsert returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 newly inserted row, got %d", n)
	}

	n, err = repo.BatchInsert(ctx, []Transaction{tx})
	if err != nil {
		t.Fatalf("second BatchInsert returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 newly inserted rows on re-insert, got %d", n)
	}
}

func TestUnprocessedTransactionsExcludesRecorded(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	txRepo := NewTransactionRepository(testClient)
	procRepo := NewProcessingRepository(testClient)
	ctx := context.Background()

	hash := "TESTHASH0000000000000000000000000000000000000000000000000002"
	tx := Transaction{
		Hash:              hash,
		Account:           "rSender111111111111111111111111",
		LedgerIndex:       99999,
		CloseTimeISO:      time.Now().UTC(),
		TxJSON:            []byte(`{}`),
		Meta:              []byte(`{}`),
		Validated:         true,
		TransactionResult: "tesSUCCESS",
	}
	if _, err := txRepo.BatchInsert(ctx, []Transaction{tx}); err != nil {
		t.Fatalf("BatchInsert returned error: %v", err)
	}

	unprocessed, err := txRepo.UnprocessedTransactions(ctx, "ledger_index", 1000)
	if err != nil {
		t.Fatalf("UnprocessedTransactions returned error: %v", err)
	}
	found := false
	for _, u := range unprocessed {
		if u.Hash == hash {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s to appear in unprocessed transactions", hash)
	}

	if err := procRepo.Record(ctx, ProcessingResult{
		TxHash:    hash,
		Processed: true,
		RuleName:  "test_rule",
	}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	unprocessed, err = txRepo.UnprocessedTransactions(ctx, "ledger_index", 1000)
	if err != nil {
		t.Fatalf("UnprocessedTransactions returned error: %v", err)
	}
	for _, u := range unprocessed {
		if u.Hash == hash {
			t.Fatalf("expected %s to be excluded after recording a processing result", hash)
		}
	}
}
