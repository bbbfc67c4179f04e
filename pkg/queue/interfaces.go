package queue

import (
	"context"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/submitter"
	"github.com/postfiat/taskengine/pkg/xrpl"
)

// HistorySource supplies logical memo history for an account;
// implemented by memohistory.Builder.
type HistorySource interface {
	History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error)
}

// Sender submits memo-bearing payments; implemented by
// submitter.Submitter.
type Sender interface {
	SendMemo(ctx context.Context, wallet *xrpl.Wallet, destination, memoType, memoFormat, payload string, pftAmount float64, flags submitter.SendFlags) ([]*xrpl.SubmitResult, error)
}

// ProcessingRecorder records exactly-once processing outcomes;
// implemented by database.ProcessingRepository.
type ProcessingRecorder interface {
	Record(ctx context.Context, result database.ProcessingResult) error
	IsProcessed(ctx context.Context, txHash string) (bool, error)
}

// DocFetcher retrieves the verification section of a user's linked
// context document. It is an external collaborator: failures are
// tolerated and replaced by a placeholder.
type DocFetcher interface {
	FetchVerificationText(ctx context.Context, link string) (string, error)
}

// HandshakeRegistry is the handshake-registry surface the handshake
// queue scans;
// implemented by handshake.Registry.
type HandshakeRegistry interface {
	AutoAddresses() []string
}
