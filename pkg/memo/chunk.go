// chunk.go implements memo chunking: splitting oversized memo payloads
// across multiple transactions and reassembling them from ordered memo
// history.
package memo

import (
	"fmt"
	"regexp"
	"sort"
)

const (
	// chunkPreSplitBudget is the maximum size, in bytes, of a chunk's
	// payload before the "chunk_N__" label is prepended, leaving
	// headroom for the label plus any WHISPER__/COMPRESSED__ prefixes.
	chunkPreSplitBudget = 760

	// MaxChunkSize is the hard ceiling, in bytes, on a single memo_data
	// field after all chunk/compress/encrypt prefixes are applied.
	MaxChunkSize = 900
)

var chunkLabelPattern = regexp.MustCompile(`^chunk_(\d+)__`)

// chunkLabel returns the "chunk_N__" prefix for the given 1-based
// position (chunk numbering starts at 1 on the wire).
func chunkLabel(position int) string {
	return fmt.Sprintf("chunk_%d__", position)
}

// splitIntoChunks splits text into pieces no larger than
// chunkPreSplitBudget bytes each, preserving byte order. Splits are on
// raw byte length, not UTF-8 boundaries; reassembly concatenates the
// bytes back before any decoding.
func splitIntoChunks(text string) []string {
	if len(text) <= chunkPreSplitBudget {
		return []string{text}
	}

	var chunks []string
	b := []byte(text)
	for len(b) > 0 {
		n := chunkPreSplitBudget
		if n > len(b) {
			n = len(b)
		}
		chunks = append(chunks, string(b[:n]))
		b = b[n:]
	}
	return chunks
}

// labelChunks prefixes each chunk with its "chunk_N__" label. A
// single-chunk message is not labeled: chunking only kicks in when the
// message actually exceeds the pre-split budget.
func labelChunks(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	labeled := make([]string, len(chunks))
	for i, c := range chunks {
		labeled[i] = chunkLabel(i+1) + c
	}
	return labeled
}

// ChunkIndex returns the chunk index encoded in a labeled memo_data
// string, or -1 if the string carries no chunk label.
func ChunkIndex(memoData string) int {
	m := chunkLabelPattern.FindStringSubmatch(memoData)
	if m == nil {
		return -1
	}
	var idx int
	fmt.Sscanf(m[1], "%d", &idx)
	return idx
}

// stripChunkLabel removes a leading "chunk_N__" label, if present.
func stripChunkLabel(memoData string) string {
	return chunkLabelPattern.ReplaceAllString(memoData, "")
}

// ChunkedMemo is one row of raw, still-encoded memo_data belonging to a
// single logical message, ordered by its position in the transaction
// history (ledger_index, then hash, ascending).
type ChunkedMemo struct {
	MemoData    string
	LedgerIndex int64
	Hash        string
}

// ReassembleChunks orders a set of same-group memo_data rows by chunk
// index (falling back to ledger order when rows carry no explicit chunk
// label) and concatenates their un-prefixed payloads into a single
// string, ready for decompression/decryption.
func ReassembleChunks(rows []ChunkedMemo) string {
	ordered := make([]ChunkedMemo, len(rows))
	copy(ordered, rows)

	sort.SliceStable(ordered, func(i, j int) bool {
		ii, ij := ChunkIndex(ordered[i].MemoData), ChunkIndex(ordered[j].MemoData)
		if ii != -1 && ij != -1 {
			return ii < ij
		}
		if ordered[i].LedgerIndex != ordered[j].LedgerIndex {
			return ordered[i].LedgerIndex < ordered[j].LedgerIndex
		}
		return ordered[i].Hash < ordered[j].Hash
	})

	var out string
	for _, row := range ordered {
		out += stripChunkLabel(row.MemoData)
	}
	return out
}
