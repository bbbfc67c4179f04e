// codec.go ties hex encoding, chunking, compression and encryption into
// the top-level memo payload grammar:
//
//	memo_data := plain | encrypted | chunked
//	encrypted := "WHISPER__" base64(AEAD(shared_secret, plain_or_compressed))
//	compressed := "COMPRESSED__" base64url(brotli(raw))
//	chunked := "chunk_" N "__" remainder
package memo

import (
	"fmt"
	"log"
	"strings"
)

// EncodeOptions controls which transforms Encode applies, in the fixed
// order compress, then encrypt, then chunk.
type EncodeOptions struct {
	Compress     bool
	Encrypt      bool
	SharedSecret []byte
}

// Encode applies compress/encrypt/chunk to a plaintext memo_data payload
// and hex-encodes the result into one Raw memo per chunk, all sharing
// memoType so the history builder can group and reassemble them.
func Encode(memoType, memoFormat, payload string, opts EncodeOptions) ([]Raw, error) {
	body := payload

	if opts.Compress {
		compressed, err := compressString(body)
		if err != nil {
			return nil, fmt.Errorf("failed to compress memo payload: %w", err)
		}
		body = CompressedPrefix + compressed
	}

	if opts.Encrypt {
		if len(opts.SharedSecret) == 0 {
			return nil, ErrNoSharedSecret
		}
		encrypted, err := encryptMessage(body, opts.SharedSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt memo payload: %w", err)
		}
		body = WhisperPrefix + encrypted
	}

	parts := labelChunks(splitIntoChunks(body))

	raws := make([]Raw, len(parts))
	for i, part := range parts {
		if len(part) > MaxChunkSize {
			return nil, fmt.Errorf("chunk %d exceeds max memo size (%d > %d bytes)", i, len(part), MaxChunkSize)
		}
		raws[i] = EncodeRaw(Decoded{MemoType: memoType, MemoFormat: memoFormat, MemoData: part})
	}
	return raws, nil
}

// Decode strips a single chunk_N__ label, then reverses WHISPER__, then
// COMPRESSED__ on an already hex-decoded memo_data string. It never
// returns an error: on malformed ciphertext, a wrong key, or corrupted
// compression, it logs a warning and returns memoData unchanged, matching
// the "never throws to caller" failure contract.
func Decode(memoData string, sharedSecret []byte, logger *log.Logger) string {
	if logger == nil {
		logger = log.New(log.Writer(), "[Memo] ", log.LstdFlags)
	}

	body := stripChunkLabel(memoData)

	if strings.HasPrefix(body, WhisperPrefix) {
		if len(sharedSecret) == 0 {
			logger.Printf("warning: encountered WHISPER__ payload with no shared secret available, returning raw memo_data")
			return memoData
		}
		plain, err := decryptMessage(strings.TrimPrefix(body, WhisperPrefix), sharedSecret)
		if err != nil {
			logger.Printf("warning: failed to decrypt memo payload: %v", err)
			return memoData
		}
		body = plain
	}

	if strings.HasPrefix(body, CompressedPrefix) {
		plain, err := decompressString(strings.TrimPrefix(body, CompressedPrefix))
		if err != nil {
			logger.Printf("warning: failed to decompress memo payload: %v", err)
			return memoData
		}
		body = plain
	}

	return body
}
