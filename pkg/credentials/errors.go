package credentials

import "errors"

// Sentinel errors for credential store operations.
var (
	// ErrInvalidPassword is returned when Open is called with a password
	// that fails to decrypt the store's canary credential.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrCredentialNotFound is returned when a requested credential key
	// does not exist in the store.
	ErrCredentialNotFound = errors.New("credential not found")
)
