// Package envelope implements two-layer AES-GCM envelope encryption on top of
// a custodian. The inner layer wraps the private key under the master alias,
// the outer layer wraps the base64 inner ciphertext under the encryption alias.
package envelope

import (
	"errors"
	"fmt"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/custodian"
)

var (
	ErrEncryption = errors.New("envelope: encryption failed")
	ErrDecryption = errors.New("envelope: decryption failed")
)

// Blob is one AES-GCM layer. Ciphertext carries the 16 byte tag.
type Blob struct {
	Ciphertext string `json:"ciphertext"` // base64
	IV         string `json:"iv"`         // base64, 12 bytes
}

// Envelope is the persisted form of a sealed private key.
type Envelope struct {
	Outer   Blob
	InnerIV string // base64, 12 bytes
}

type Encryptor struct {
	custodian  custodian.Custodian
	master     string
	encryption string
}

func NewEncryptor(c custodian.Custodian, masterAlias, encryptionAlias string) *Encryptor {
	return &Encryptor{
		custodian:  c,
		master:     masterAlias,
		encryption: encryptionAlias,
	}
}

func (e *Encryptor) MasterAlias() string     { return e.master }
func (e *Encryptor) EncryptionAlias() string { return e.encryption }

// EnsureKeys creates whichever wrapping key is missing.
func (e *Encryptor) EnsureKeys() error {
	for _, alias := range []string{e.master, e.encryption} {
		ok, err := e.custodian.HasKey(alias)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		if ok {
			continue
		}
		if err := e.custodian.GenerateKey(alias); err != nil {
			return fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		log.Info("wrapping key created: ", alias)
	}
	return nil
}

// DestroyKeys deletes both wrapping keys. Every envelope sealed under them
// becomes unrecoverable.
func (e *Encryptor) DestroyKeys() error {
	var errs []error
	for _, alias := range []string{e.master, e.encryption} {
		if err := e.custodian.DeleteKey(alias); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", alias, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Encryptor) Wrap(alias string, plaintext []byte) (*Blob, error) {
	ct, iv, err := e.custodian.Encrypt(alias, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	if len(iv) != custodian.IVSize {
		return nil, fmt.Errorf("%w: custodian returned %d byte iv", ErrEncryption, len(iv))
	}
	return &Blob{
		Ciphertext: utils.EncodeBase64(ct),
		IV:         utils.EncodeBase64(iv),
	}, nil
}

func (e *Encryptor) Unwrap(alias string, blob *Blob) ([]byte, error) {
	if blob == nil {
		return nil, ErrDecryption
	}
	ct, err := utils.DecodeBase64(blob.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext encoding", ErrDecryption)
	}
	iv, err := utils.DecodeBase64(blob.IV)
	if err != nil || len(iv) != custodian.IVSize {
		return nil, fmt.Errorf("%w: iv", ErrDecryption)
	}
	pt, err := e.custodian.Decrypt(alias, ct, iv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return pt, nil
}

// Seal wraps plaintext under master, then the base64 inner ciphertext under
// encryption.
func (e *Encryptor) Seal(plaintext []byte) (*Envelope, error) {
	inner, err := e.Wrap(e.master, plaintext)
	if err != nil {
		return nil, err
	}
	outer, err := e.Wrap(e.encryption, []byte(inner.Ciphertext))
	if err != nil {
		return nil, err
	}
	return &Envelope{Outer: *outer, InnerIV: inner.IV}, nil
}

// Open reverses Seal. No partial plaintext is returned on failure.
func (e *Encryptor) Open(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrDecryption
	}
	innerCT, err := e.Unwrap(e.encryption, &env.Outer)
	if err != nil {
		return nil, err
	}
	defer utils.ZeroBytes(innerCT)

	return e.Unwrap(e.master, &Blob{Ciphertext: string(innerCT), IV: env.InnerIV})
}
