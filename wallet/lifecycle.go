package wallet

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/envelope"
	"github.com/tyler-smith/go-bip39"
)

// Lifecycle covers export, restore and fingerprinting of the stored key.
// Store, access tracking and wipe live on SecureStore.
type Lifecycle struct {
	store *SecureStore
	enc   *envelope.Encryptor
	now   func() time.Time
}

func NewLifecycle(store *SecureStore, enc *envelope.Encryptor) *Lifecycle {
	return &Lifecycle{store: store, enc: enc, now: time.Now}
}

// ExportForBackup returns base64(JSON(BackupBundle)). The private key is
// re-encrypted once under the encryption alias, so the bundle is only
// restorable where that alias exists.
func (l *Lifecycle) ExportForBackup(consent bool) (string, error) {
	if !consent {
		return "", ErrConsentDenied
	}
	pub, err := l.store.LoadPublicKey()
	if err != nil {
		return "", err
	}
	addr, err := l.store.LoadVoterAddress()
	if err != nil {
		return "", err
	}
	method, err := l.store.LoadGenerationMethod()
	if err != nil {
		return "", err
	}
	sk, err := l.store.LoadPrivateKey()
	if err != nil {
		return "", err
	}
	defer sk.Wipe()

	pk := sk.HexBytes()
	defer utils.ZeroBytes(pk)
	blob, err := l.enc.Wrap(l.enc.EncryptionAlias(), pk)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(&BackupBundle{
		Version:             BackupVersion,
		Timestamp:           l.now().UnixMilli(),
		PublicKey:           pub,
		EncryptedPrivateKey: blob.Ciphertext,
		IV:                  blob.IV,
		Address:             addr,
		GenerationMethod:    method,
	})
	if err != nil {
		return "", err
	}
	log.Info("key pair exported for backup, address: ", addr)
	return utils.EncodeBase64(raw), nil
}

func (l *Lifecycle) ParseBackup(bundle string) (*BackupBundle, error) {
	raw, err := utils.DecodeBase64(strings.TrimSpace(bundle))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding", ErrInvalidBackup)
	}
	b := new(BackupBundle)
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if b.Version != BackupVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, b.Version)
	}
	if b.EncryptedPrivateKey == "" || b.IV == "" {
		return nil, fmt.Errorf("%w: missing fields", ErrInvalidBackup)
	}
	if _, err := utils.StringToPublicKey(b.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidBackup, err)
	}
	if _, err := utils.StringToAddress(b.Address); err != nil {
		return nil, fmt.Errorf("%w: address: %v", ErrInvalidBackup, err)
	}
	return b, nil
}

// RestoreFromBackup decrypts a bundle, checks the key pair and stores it
// under a fresh envelope. Returns the restored voter address.
func (l *Lifecycle) RestoreFromBackup(bundle string) (string, error) {
	b, err := l.ParseBackup(bundle)
	if err != nil {
		return "", err
	}
	pt, err := l.enc.Unwrap(l.enc.EncryptionAlias(), &envelope.Blob{Ciphertext: b.EncryptedPrivateKey, IV: b.IV})
	if err != nil {
		return "", err
	}
	defer utils.ZeroBytes(pt)

	sk, err := decodePrivateKey(pt)
	if err != nil {
		return "", err
	}
	info := &KeyPairInfo{
		PublicKey:          strings.ToLower(b.PublicKey),
		PrivateKey:         sk,
		VoterAddress:       strings.ToLower(b.Address),
		CreationTimeMillis: l.now().UnixMilli(),
		GenerationMethod:   b.GenerationMethod,
	}
	defer info.Wipe()

	report, err := checkKeyPair(sk, info.PublicKey, info.VoterAddress)
	if err != nil {
		return "", err
	}
	if !report.Valid() {
		return "", fmt.Errorf("%w: %w", ErrInvalidBackup, ErrValidationFailed)
	}
	if err := l.store.Persist(info); err != nil {
		return "", err
	}
	log.Info("key pair restored from backup, address: ", info.VoterAddress)
	return info.VoterAddress, nil
}

// BackupFingerprint renders the first 16 bytes of SHA-256(bundle) as 12
// BIP-39 words so two copies of a bundle can be compared by eye.
func BackupFingerprint(bundle string) (string, error) {
	sum := sha256.Sum256([]byte(strings.TrimSpace(bundle)))
	return bip39.NewMnemonic(sum[:16])
}
