package wallet

import (
	"errors"

	"github.com/abcfe/voterkey/common/crypto"
	"github.com/abcfe/voterkey/keygen"
)

var (
	ErrKeyNotFound         = errors.New("wallet: stored key pair not found")
	ErrMalformedPrivateKey = errors.New("wallet: malformed private key")
	ErrConsentDenied       = errors.New("wallet: export requires explicit consent")
	ErrInvalidBackup       = errors.New("wallet: invalid backup bundle")
	ErrValidationFailed    = errors.New("wallet: key pair failed validation")
)

// KeyPairInfo is a voter identity before it is sealed into the store.
type KeyPairInfo struct {
	PublicKey          string // 0x + 128 hex, X||Y
	PrivateKey         *crypto.SecretKey
	VoterAddress       string // 0x + 40 hex
	CreationTimeMillis int64
	GenerationMethod   keygen.Method
}

// newKeyPairInfo takes ownership of res.PrivateKey.
func newKeyPairInfo(res *keygen.Result, nowMillis int64) *KeyPairInfo {
	return &KeyPairInfo{
		PublicKey:          res.PublicKeyHex(),
		PrivateKey:         res.PrivateKey,
		VoterAddress:       res.AddressHex(),
		CreationTimeMillis: nowMillis,
		GenerationMethod:   res.Method,
	}
}

func (k *KeyPairInfo) Wipe() {
	if k != nil {
		k.PrivateKey.Wipe()
	}
}

// KeyMetadata is stored as JSON under key_metadata.
type KeyMetadata struct {
	CreationTime     int64         `json:"creationTime"`   // unix millis
	LastAccessTime   int64         `json:"lastAccessTime"` // unix millis
	AccessCount      int64         `json:"accessCount"`
	KeyVersion       int           `json:"keyVersion"`
	GenerationMethod keygen.Method `json:"generationMethod"`
}

const BackupVersion = 1

// BackupBundle is the decoded export payload. EncryptedPrivateKey is a single
// AES-GCM layer under the encryption alias.
type BackupBundle struct {
	Version             int           `json:"version"`
	Timestamp           int64         `json:"timestamp"`
	PublicKey           string        `json:"publicKey"`
	EncryptedPrivateKey string        `json:"encryptedPrivateKey"`
	IV                  string        `json:"iv"`
	Address             string        `json:"address"`
	GenerationMethod    keygen.Method `json:"generationMethod"`
}
