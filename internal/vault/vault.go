// Package vault keeps OTP accounts in a passphrase-encrypted file.
//
// File layout: magic "OTPV1", 16-byte argon2id salt, 12-byte GCM nonce,
// then the AES-256-GCM sealed JSON document.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"

	"otpmigrate/internal/migration"
	"otpmigrate/internal/otpauth"
)

var (
	ErrEmptyPassphrase = errors.New("vault: empty passphrase")
	ErrWrongPassphrase = errors.New("vault: wrong passphrase or tampered file")
	ErrCorrupt         = errors.New("vault: corrupt file")
	ErrNoSuchAccount   = errors.New("vault: no such account")
)

var magic = []byte("OTPV1")

const (
	saltSize = 16
	keySize  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Storage is the plaintext document sealed inside the vault file.
type Storage struct {
	Accounts []Account `json:"accounts"`
}

// Vault is an opened vault file. It is not safe for concurrent use.
type Vault struct {
	path    string
	salt    []byte
	key     []byte
	storage Storage
}

// Open reads and decrypts the vault at path. A missing file yields an empty
// vault that Save will create.
func Open(path, passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("vault: read %s: %w", path, err)
		}
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("vault: generate salt: %w", err)
		}
		log.Debug().Str("path", path).Msg("vault file not found, starting empty")
		return &Vault{path: path, salt: salt, key: deriveKey(passphrase, salt)}, nil
	}

	if len(data) < len(magic)+saltSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, ErrCorrupt
	}
	salt := append([]byte(nil), data[len(magic):len(magic)+saltSize]...)
	key := deriveKey(passphrase, salt)
	plain, err := decrypt(data[len(magic)+saltSize:], key)
	if err != nil {
		return nil, err
	}
	var storage Storage
	if err := json.Unmarshal(plain, &storage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	log.Debug().Str("path", path).Int("accounts", len(storage.Accounts)).Msg("vault opened")
	return &Vault{path: path, salt: salt, key: key, storage: storage}, nil
}

// Save encrypts the vault and atomically replaces the file.
func (v *Vault) Save() error {
	plain, err := json.Marshal(v.storage)
	if err != nil {
		return fmt.Errorf("vault: marshal: %w", err)
	}
	sealed, err := encrypt(plain, v.key)
	if err != nil {
		return err
	}
	out := make([]byte, 0, len(magic)+len(v.salt)+len(sealed))
	out = append(out, magic...)
	out = append(out, v.salt...)
	out = append(out, sealed...)

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("vault: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(out); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("vault: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("vault: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), v.path); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	log.Debug().Str("path", v.path).Int("accounts", len(v.storage.Accounts)).Msg("vault saved")
	return nil
}

// Path is the file the vault was opened from.
func (v *Vault) Path() string {
	return v.path
}

// Accounts returns a copy of the stored accounts.
func (v *Vault) Accounts() []Account {
	return append([]Account(nil), v.storage.Accounts...)
}

// Add appends a after checking that it can generate codes.
func (v *Vault) Add(a Account) error {
	p, err := a.Parameters()
	if err != nil {
		return err
	}
	if _, err := otpauth.KeyFromParameters(p); err != nil {
		return fmt.Errorf("vault: account %q: %w", a.Label(), err)
	}
	v.storage.Accounts = append(v.storage.Accounts, a)
	return nil
}

// Remove deletes the account at index.
func (v *Vault) Remove(index int) error {
	if index < 0 || index >= len(v.storage.Accounts) {
		return fmt.Errorf("%w: %d", ErrNoSuchAccount, index)
	}
	v.storage.Accounts = append(v.storage.Accounts[:index], v.storage.Accounts[index+1:]...)
	return nil
}

// Edit renames the account at index. An empty value keeps the current one.
func (v *Vault) Edit(index int, name, issuer string) error {
	if index < 0 || index >= len(v.storage.Accounts) {
		return fmt.Errorf("%w: %d", ErrNoSuchAccount, index)
	}
	a := &v.storage.Accounts[index]
	if name != "" {
		a.Name = name
	}
	if issuer != "" {
		a.Issuer = issuer
	}
	return nil
}

// Advance moves an HOTP account to its next counter value.
func (v *Vault) Advance(index int) error {
	if index < 0 || index >= len(v.storage.Accounts) {
		return fmt.Errorf("%w: %d", ErrNoSuchAccount, index)
	}
	a := &v.storage.Accounts[index]
	if migration.OtpType(a.Type) != migration.OtpTypeHOTP {
		return fmt.Errorf("vault: account %q is not hotp", a.Label())
	}
	a.Counter++
	return nil
}

// Find returns the indexes of accounts whose label contains query,
// ignoring case. An empty query matches everything.
func (v *Vault) Find(query string) []int {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []int
	for i, a := range v.storage.Accounts {
		if query == "" || strings.Contains(strings.ToLower(a.Label()), query) {
			out = append(out, i)
		}
	}
	return out
}

// Import adds the entries of p that are not already stored and returns
// how many were added.
func (v *Vault) Import(p migration.MigrationPayload) (int, error) {
	added := 0
	for i, op := range p.OtpParameters {
		a := AccountFromParameters(op)
		if v.contains(a) {
			log.Debug().Str("account", a.Label()).Msg("skipping duplicate account")
			continue
		}
		if err := v.Add(a); err != nil {
			return added, fmt.Errorf("vault: import entry %d: %w", i, err)
		}
		added++
	}
	return added, nil
}

// Parameters converts every stored account for export.
func (v *Vault) Parameters() ([]migration.OtpParameters, error) {
	out := make([]migration.OtpParameters, 0, len(v.storage.Accounts))
	for _, a := range v.storage.Accounts {
		p, err := a.Parameters()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (v *Vault) contains(a Account) bool {
	for _, existing := range v.storage.Accounts {
		if existing.Secret == a.Secret && existing.Name == a.Name && existing.Issuer == a.Issuer {
			return true
		}
	}
	return false
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

func encrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, magic), nil
}

func decrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCorrupt
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
