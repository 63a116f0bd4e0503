// Package custodian holds the non-extractable wrapping keys used by the
// envelope layer. Raw key material never leaves a Custodian; callers only see
// ciphertext and IVs.
package custodian

import (
	"errors"
	"fmt"

	"github.com/abcfe/voterkey/config"
)

// IVSize is the AES-GCM nonce length every custodian produces and accepts.
const IVSize = 12

// KeySize is the AES-256 wrapping key length.
const KeySize = 32

var (
	ErrAliasNotFound = errors.New("custodian: alias not found")
	ErrInvalidIV     = errors.New("custodian: invalid iv")
	ErrAuthFailed    = errors.New("custodian: authentication failed")
	ErrUnavailable   = errors.New("custodian: backend unavailable")
)

// Custodian is a secure key store holding AES-256-GCM wrapping keys by alias.
// GenerateKey replaces any key already held under alias.
type Custodian interface {
	GenerateKey(alias string) error
	Encrypt(alias string, plaintext []byte) (ciphertext, iv []byte, err error)
	Decrypt(alias string, ciphertext, iv []byte) ([]byte, error)
	DeleteKey(alias string) error
	HasKey(alias string) (bool, error)
}

// KV is the slice of the key-value store the software custodian needs to
// persist sealed wrapping keys.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Write(puts map[string][]byte, deletes [][]byte) error
}

// New builds the custodian selected by cfg.Custodian.Backend. The software
// backend stays unsealed only when the store is in memory too.
func New(cfg *config.Config, store KV) (Custodian, error) {
	switch cfg.Custodian.Backend {
	case config.CustodianSoftware:
		if cfg.Store.InMemory {
			return NewSoftware(), nil
		}
		if cfg.Custodian.Passphrase == "" {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, config.ErrPassphraseRequired)
		}
		if store == nil {
			return nil, fmt.Errorf("%w: no store to seal wrapping keys into", ErrUnavailable)
		}
		return NewSealedSoftware(store, cfg.Custodian.Passphrase)
	case config.CustodianPKCS11:
		return openPKCS11(cfg.Custodian.PKCS11Library, cfg.Custodian.PKCS11Slot, cfg.Custodian.PKCS11Pin)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, cfg.Custodian.Backend)
	}
}
