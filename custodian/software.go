package custodian

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	"golang.org/x/crypto/argon2"
)

const (
	sealVersion = 1
	saltSize    = 16

	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

// Software keeps AES-256 wrapping keys in process memory. When built with
// NewSealedSoftware the keys are also sealed under an argon2id-derived key and
// written to the store, so they survive restarts.
type Software struct {
	mu   sync.Mutex
	keys map[string][]byte

	store      KV
	passphrase []byte
	kek        []byte

	rand io.Reader
}

func NewSoftware() *Software {
	return &Software{
		keys: make(map[string][]byte),
		rand: rand.Reader,
	}
}

func NewSealedSoftware(store KV, passphrase string) (*Software, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrUnavailable)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrUnavailable)
	}
	s := NewSoftware()
	s.store = store
	s.passphrase = []byte(passphrase)
	return s, nil
}

func (s *Software) GenerateKey(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(s.rand, key); err != nil {
		return fmt.Errorf("custodian: generate %s: %w", alias, err)
	}

	if s.store != nil {
		sealed, err := s.seal(alias, key)
		if err != nil {
			utils.ZeroBytes(key)
			return err
		}
		if err := s.store.Write(map[string][]byte{string(utils.GetCustodianKeyName(alias)): sealed}, nil); err != nil {
			utils.ZeroBytes(key)
			return fmt.Errorf("custodian: persist %s: %w", alias, err)
		}
	}

	if old, ok := s.keys[alias]; ok {
		utils.ZeroBytes(old)
	}
	s.keys[alias] = key
	log.Debug("custodian key generated: ", alias)
	return nil
}

func (s *Software) Encrypt(alias string, plaintext []byte) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := s.aead(alias)
	if err != nil {
		return nil, nil, err
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return nil, nil, fmt.Errorf("custodian: iv: %w", err)
	}
	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

func (s *Software) Decrypt(alias string, ciphertext, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidIV
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := s.aead(alias)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

func (s *Software) DeleteKey(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[alias]; ok {
		utils.ZeroBytes(key)
		delete(s.keys, alias)
	}
	if s.store != nil {
		if err := s.store.Write(nil, [][]byte{utils.GetCustodianKeyName(alias)}); err != nil {
			return fmt.Errorf("custodian: delete %s: %w", alias, err)
		}
	}
	log.Debug("custodian key deleted: ", alias)
	return nil
}

func (s *Software) HasKey(alias string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[alias]; ok {
		return true, nil
	}
	if s.store == nil {
		return false, nil
	}
	return s.store.Has(utils.GetCustodianKeyName(alias))
}

// Close zeroes every key held in memory.
func (s *Software) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for alias, key := range s.keys {
		utils.ZeroBytes(key)
		delete(s.keys, alias)
	}
	utils.ZeroBytes(s.kek)
	s.kek = nil
	utils.ZeroBytes(s.passphrase)
	return nil
}

// aead must be called with s.mu held.
func (s *Software) aead(alias string) (cipher.AEAD, error) {
	key, err := s.key(alias)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Software) key(alias string) ([]byte, error) {
	if key, ok := s.keys[alias]; ok {
		return key, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
	}

	name := utils.GetCustodianKeyName(alias)
	ok, err := s.store.Has(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
	}
	sealed, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}
	key, err := s.unseal(alias, sealed)
	if err != nil {
		return nil, err
	}
	s.keys[alias] = key
	return key, nil
}

// sealed record: version(1) | nonce(12) | AES-GCM(kek, key, aad=alias)
func (s *Software) seal(alias string, key []byte) ([]byte, error) {
	aead, err := s.kekAEAD()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return nil, err
	}
	out := append([]byte{sealVersion}, nonce...)
	return aead.Seal(out, nonce, key, []byte(alias)), nil
}

func (s *Software) unseal(alias string, sealed []byte) ([]byte, error) {
	aead, err := s.kekAEAD()
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(sealed) < 1+ns || sealed[0] != sealVersion {
		return nil, fmt.Errorf("custodian: sealed key %s is malformed", alias)
	}
	key, err := aead.Open(nil, sealed[1:1+ns], sealed[1+ns:], []byte(alias))
	if err != nil {
		log.Warn("custodian unseal failed: ", alias)
		return nil, ErrAuthFailed
	}
	return key, nil
}

func (s *Software) kekAEAD() (cipher.AEAD, error) {
	if s.kek == nil {
		salt, err := s.loadSalt()
		if err != nil {
			return nil, err
		}
		s.kek = argon2.IDKey(s.passphrase, salt, kdfTime, kdfMemoryKB, kdfThreads, KeySize)
	}
	block, err := aes.NewCipher(s.kek)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Software) loadSalt() ([]byte, error) {
	name := utils.GetCustodianKDFName()
	ok, err := s.store.Has(name)
	if err != nil {
		return nil, err
	}
	if ok {
		salt, err := s.store.Get(name)
		if err != nil {
			return nil, err
		}
		if len(salt) != saltSize {
			return nil, errors.New("custodian: kdf salt is malformed")
		}
		return salt, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(s.rand, salt); err != nil {
		return nil, err
	}
	if err := s.store.Write(map[string][]byte{string(name): salt}, nil); err != nil {
		return nil, err
	}
	return salt, nil
}
