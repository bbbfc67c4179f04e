package submitter

import "errors"

// Sentinel errors for transaction submission.
var (
	// ErrHandshakeRequired is returned when encryption is requested for
	// a destination that has not completed the ECDH handshake.
	ErrHandshakeRequired = errors.New("encryption requires a completed handshake")
)
