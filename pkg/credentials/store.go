// Package credentials implements the credential store: a
// password-derived, AEAD-encrypted on-disk key-value store for secrets
// (wallet seeds, the database DSN, the LLM API key).
//
// The on-disk format is a local SQLite file sitting alongside the
// Postgres-backed main store. The encryption key is derived from the
// operator password with PBKDF2 and values are sealed with AES-256-GCM.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"log"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite" // pure-Go SQLite driver
	"golang.org/x/crypto/pbkdf2"
)

func newSHA256() hash.Hash { return sha256.New() }

const (
	dbFilename       = "credentials.sqlite"
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
)

// pbkdf2Salt is a fixed, non-secret salt. It exists to make the KDF
// deterministic across opens of the same store, not to add secrecy —
// secrecy comes entirely from the password.
var pbkdf2Salt = []byte("postfiat_task_engine_salt")

// Store is a password-derived, AEAD-encrypted key-value store for secrets.
type Store struct {
	db     *sql.DB
	aead   cipher.AEAD
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (creating if necessary) the credential store under dir,
// deriving the encryption key from password. If the store already
// contains credentials, the password is verified by attempting to
// decrypt one of them; a mismatch returns ErrInvalidPassword.
func Open(dir, password string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials database: %w", err)
	}

	key := pbkdf2.Key([]byte(password), pbkdf2Salt, pbkdf2Iterations, pbkdf2KeyLen, newSHA256)
	block, err := aes.NewCipher(key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize AEAD: %w", err)
	}

	s := &Store{
		db:     db,
		aead:   aead,
		logger: log.New(log.Writer(), "[Credentials] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key TEXT PRIMARY KEY,
			encrypted_value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credentials table: %w", err)
	}

	if err := s.verifyPassword(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// verifyPassword attempts to decrypt any existing credential. An empty
// store accepts any password, matching a fresh installation.
func (s *Store) verifyPassword() error {
	row := s.db.QueryRow(`SELECT encrypted_value FROM credentials LIMIT 1`)
	var encoded string
	if err := row.Scan(&encoded); err == sql.ErrNoRows {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read canary credential: %w", err)
	}

	if _, err := s.decrypt(encoded); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// Get returns the decrypted value stored under key.
func (s *Store) Get(key string) (string, error) {
	row := s.db.QueryRow(`SELECT encrypted_value FROM credentials WHERE key = ?`, key)
	var encoded string
	if err := row.Scan(&encoded); err == sql.ErrNoRows {
		return "", ErrCredentialNotFound
	} else if err != nil {
		return "", fmt.Errorf("failed to read credential %s: %w", key, err)
	}

	plaintext, err := s.decrypt(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential %s: %w", key, err)
	}
	return plaintext, nil
}

// Put stores value (encrypted) under key, overwriting any existing value.
func (s *Store) Put(key, value string) error {
	encoded, err := s.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO credentials (key, encrypted_value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET encrypted_value = excluded.encrypted_value`,
		key, encoded)
	if err != nil {
		return fmt.Errorf("failed to store credential %s: %w", key, err)
	}
	return nil
}

// List returns every credential key currently stored.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM credentials ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan credential key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Delete removes key from the store. It is not an error to delete a
// nonexistent key.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *Store) decrypt(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
