// Package memohistory implements the memo history builder: per-account
// time-ordered memo sequences with chunk reassembly and post-assembly
// decryption/decompression applied, ready for the task state classifier.
package memohistory

import (
	"context"
	"log"

	"github.com/postfiat/taskengine/pkg/database"
	"github.com/postfiat/taskengine/pkg/memo"
)

// Source supplies the raw decoded_memos projection for an account. It is
// implemented by database.TransactionRepository.
type Source interface {
	History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error)
}

// SecretResolver returns the ECDH shared secret for decrypting WHISPER__
// payloads exchanged with counterparty, or nil if no handshake exists.
type SecretResolver func(counterparty string) []byte

// Builder assembles logical memo histories from the transaction cache.
type Builder struct {
	source  Source
	secrets SecretResolver
	logger  *log.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets a custom logger for the builder.
func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithSecretResolver enables decryption of WHISPER__ payloads using
// per-counterparty shared secrets.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(b *Builder) { b.secrets = resolver }
}

// NewBuilder constructs a Builder over source.
func NewBuilder(source Source, opts ...Option) *Builder {
	b := &Builder{
		source: source,
		logger: log.New(log.Writer(), "[MemoHistory] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// History returns the logical memo history for account: chunked memos
// reassembled into single entries (the last chunk's row is the
// representative), then each memo_data unwrapped from its
// WHISPER__/COMPRESSED__ envelopes. Rows arrive and leave in ledger
// order.
func (b *Builder) History(ctx context.Context, account string, pftOnly bool) ([]database.DecodedMemo, error) {
	raw, err := b.source.History(ctx, account, pftOnly)
	if err != nil {
		return nil, err
	}

	assembled := reassemble(raw)

	for i := range assembled {
		var secret []byte
		if b.secrets != nil {
			secret = b.secrets(assembled[i].UserAccount)
		}
		assembled[i].MemoData = memo.Decode(assembled[i].MemoData, secret, b.logger)
	}
	return assembled, nil
}

// chunkGroupKey identifies one logical chunked message: all chunks share
// a memo_type and flow between the same pair of accounts in the same
// direction.
type chunkGroupKey struct {
	memoType    string
	account     string
	destination string
}

// reassemble collapses chunk_N__ rows sharing a group key into one entry
// carrying the concatenated payload, positioned at the group's last
// chunk row. Unchunked rows pass through untouched.
func reassemble(rows []database.DecodedMemo) []database.DecodedMemo {
	groups := make(map[chunkGroupKey][]memo.ChunkedMemo)
	lastIndex := make(map[chunkGroupKey]int)

	for i, row := range rows {
		if memo.ChunkIndex(row.MemoData) < 0 {
			continue
		}
		key := chunkGroupKey{memoType: row.MemoType, account: row.Account, destination: row.Destination}
		groups[key] = append(groups[key], memo.ChunkedMemo{
			MemoData:    row.MemoData,
			LedgerIndex: row.LedgerIndex,
			Hash:        row.Hash,
		})
		lastIndex[key] = i
	}

	if len(groups) == 0 {
		return rows
	}

	out := make([]database.DecodedMemo, 0, len(rows))
	for i, row := range rows {
		if memo.ChunkIndex(row.MemoData) < 0 {
			out = append(out, row)
			continue
		}
		key := chunkGroupKey{memoType: row.MemoType, account: row.Account, destination: row.Destination}
		if i != lastIndex[key] {
			continue
		}
		row.MemoData = memo.ReassembleChunks(groups[key])
		out = append(out, row)
	}
	return out
}
