package memo

import "errors"

// Sentinel errors for memo encode/decode operations.
var (
	// ErrMalformedMemo is returned when a memo's hex fields cannot be
	// decoded at all.
	ErrMalformedMemo = errors.New("malformed memo")

	// ErrDecryptFailed is returned when a WHISPER__ payload fails to
	// authenticate against the derived shared-secret key.
	ErrDecryptFailed = errors.New("failed to decrypt memo payload")

	// ErrDecompressFailed is returned when a COMPRESSED__ payload fails
	// to decompress.
	ErrDecompressFailed = errors.New("failed to decompress memo payload")

	// ErrNoSharedSecret is returned when Encode is asked to encrypt a
	// payload but no shared secret was supplied.
	ErrNoSharedSecret = errors.New("encrypted memo requires a shared secret")
)
