package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abcfe/voterkey/common/crypto"
	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/config"
	"github.com/abcfe/voterkey/custodian"
	"github.com/abcfe/voterkey/envelope"
	"github.com/abcfe/voterkey/keygen"
	prt "github.com/abcfe/voterkey/protocol"
)

// KeyManager is the application-facing facade over generation, secure
// storage, validation and lifecycle of a single voter wallet.
type KeyManager struct {
	mu sync.Mutex

	generator *keygen.Generator
	encryptor *envelope.Encryptor
	store     *SecureStore
	validator *Validator
	lifecycle *Lifecycle
	metrics   *Metrics
	now       func() time.Time
}

// MasterAlias and EncryptionAlias derive the wrapping key aliases from the
// configured prefix.
func MasterAlias(cfg config.Wallet) string     { return cfg.AliasPrefix + prt.AliasMaster }
func EncryptionAlias(cfg config.Wallet) string { return cfg.AliasPrefix + prt.AliasEncryption }

// NewKeyManager wires the wallet on top of db and cust. A nil generator
// selects the default strategy chain with the hybrid strategy bound to cust.
func NewKeyManager(cfg config.Wallet, gen *keygen.Generator, db KV, cust custodian.Custodian, metrics *Metrics) *KeyManager {
	if gen == nil {
		gen = keygen.NewDefaultGenerator(keygen.Options{
			Custodian:      cust,
			EphemeralAlias: cfg.AliasPrefix + "entropy",
		})
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	enc := envelope.NewEncryptor(cust, MasterAlias(cfg), EncryptionAlias(cfg))
	store := NewSecureStore(db, enc, cfg.KeyVersion)
	return &KeyManager{
		generator: gen,
		encryptor: enc,
		store:     store,
		validator: NewValidator(store),
		lifecycle: NewLifecycle(store, enc),
		metrics:   metrics,
		now:       time.Now,
	}
}

func (m *KeyManager) Metrics() *Metrics { return m.metrics }

// GenerateKeyPair runs the strategy chain. Nothing is stored; the caller
// owns the returned key and must Wipe it.
func (m *KeyManager) GenerateKeyPair() (*KeyPairInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generate()
}

// generate requires m.mu; the hybrid strategy shares one ephemeral alias.
func (m *KeyManager) generate() (*KeyPairInfo, error) {
	start := time.Now()
	res, err := m.generator.Generate()
	m.metrics.genDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("key pair generation failed: ", err)
		return nil, err
	}
	m.metrics.generated.WithLabelValues(string(res.Method)).Inc()
	return newKeyPairInfo(res, m.now().UnixMilli()), nil
}

func (m *KeyManager) StoreKeyPair(info *KeyPairInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Persist(info)
}

// CreateWallet generates, stores and validates a key pair, wiping the
// private key before returning.
func (m *KeyManager) CreateWallet() (address string, method keygen.Method, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.generate()
	if err != nil {
		return "", "", err
	}
	defer info.Wipe()

	if err := m.store.Persist(info); err != nil {
		return "", "", err
	}
	report, err := m.validator.Validate()
	m.countValidation(report, err)
	if err != nil {
		return "", "", err
	}
	if !report.Valid() {
		return "", "", ErrValidationFailed
	}
	return info.VoterAddress, info.GenerationMethod, nil
}

// GetPrivateKey returns ErrKeyNotFound when no key pair is stored. The
// caller must Wipe the key.
func (m *KeyManager) GetPrivateKey() (*crypto.SecretKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sk, err := m.store.LoadPrivateKey()
	m.metrics.keyReads.WithLabelValues(resultOf(err)).Inc()
	if err != nil {
		return nil, err
	}
	return sk, nil
}

func (m *KeyManager) GetPublicKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.LoadPublicKey()
}

func (m *KeyManager) GetVoterAddress() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.LoadVoterAddress()
}

func (m *KeyManager) Metadata() (*KeyMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.LoadMetadata()
}

// HasStoredKeyPair is false on any storage error.
func (m *KeyManager) HasStoredKeyPair() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.store.Exists()
	if err != nil {
		log.Warn("stored key pair check failed: ", err)
		return false
	}
	return ok
}

func (m *KeyManager) ValidationReport() (*ValidationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, err := m.validator.Validate()
	m.countValidation(report, err)
	return report, err
}

// ValidateStoredKeys is false on any mismatch or error.
func (m *KeyManager) ValidateStoredKeys() bool {
	report, err := m.ValidationReport()
	if err != nil {
		log.Warn("stored key validation failed: ", err)
		return false
	}
	if !report.Valid() {
		log.Warn("stored key validation mismatch: ", fmt.Sprintf("%+v", *report))
	}
	return report.Valid()
}

func (m *KeyManager) ClearStoredKeys() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Wipe()
	m.metrics.wipes.WithLabelValues(resultOf(err)).Inc()
	return err
}

func (m *KeyManager) ExportKeysForBackup(consent bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bundle, err := m.lifecycle.ExportForBackup(consent)
	switch {
	case errors.Is(err, ErrConsentDenied):
		m.metrics.exports.WithLabelValues(resultDenied).Inc()
	default:
		m.metrics.exports.WithLabelValues(resultOf(err)).Inc()
	}
	return bundle, err
}

func (m *KeyManager) RestoreFromBackup(bundle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr, err := m.lifecycle.RestoreFromBackup(bundle)
	m.metrics.restores.WithLabelValues(resultOf(err)).Inc()
	return addr, err
}

// SignHash signs hash with the stored key and wipes the key afterwards.
func (m *KeyManager) SignHash(hash prt.Hash) (prt.Signature, error) {
	sk, err := m.GetPrivateKey()
	if err != nil {
		return prt.Signature{}, err
	}
	defer sk.Wipe()
	return crypto.SignHash(sk, hash)
}

func (m *KeyManager) countValidation(report *ValidationReport, err error) {
	switch {
	case err != nil:
		m.metrics.validations.WithLabelValues(resultError).Inc()
	case report.Valid():
		m.metrics.validations.WithLabelValues(resultOK).Inc()
	default:
		m.metrics.validations.WithLabelValues(resultInvalid).Inc()
	}
}
