package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abcfe/voterkey/common/crypto"
	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/envelope"
	"github.com/abcfe/voterkey/keygen"
	prt "github.com/abcfe/voterkey/protocol"
	"github.com/abcfe/voterkey/storage"
)

// KV is the persistent key-value store the wallet writes to.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Write(puts map[string][]byte, deletes [][]byte) error
}

// SecureStore persists key pairs with the private key enveloped. It never
// writes private key material in the clear.
type SecureStore struct {
	db         KV
	enc        *envelope.Encryptor
	keyVersion int
	now        func() time.Time
}

func NewSecureStore(db KV, enc *envelope.Encryptor, keyVersion int) *SecureStore {
	if keyVersion <= 0 {
		keyVersion = 1
	}
	return &SecureStore{db: db, enc: enc, keyVersion: keyVersion, now: time.Now}
}

// Persist seals the private key and writes every field in one batch.
func (s *SecureStore) Persist(info *KeyPairInfo) error {
	if info == nil || info.PrivateKey == nil || info.PublicKey == "" || info.VoterAddress == "" {
		return fmt.Errorf("%w: incomplete key pair", ErrMalformedPrivateKey)
	}
	pk := info.PrivateKey.HexBytes()
	defer utils.ZeroBytes(pk)
	normalized, err := normalizePrivateKeyHex(pk)
	if err != nil {
		return err
	}
	defer utils.ZeroBytes(normalized)

	if err := s.enc.EnsureKeys(); err != nil {
		return err
	}
	env, err := s.enc.Seal(normalized)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(&KeyMetadata{
		CreationTime:     info.CreationTimeMillis,
		LastAccessTime:   info.CreationTimeMillis,
		AccessCount:      0,
		KeyVersion:       s.keyVersion,
		GenerationMethod: info.GenerationMethod,
	})
	if err != nil {
		return err
	}

	puts := map[string][]byte{
		prt.KeyPublicKey:           []byte(info.PublicKey),
		prt.KeyVoterAddress:        []byte(info.VoterAddress),
		prt.KeyEncryptedPrivateKey: []byte(env.Outer.Ciphertext),
		prt.KeyEncryptionIV:        []byte(env.Outer.IV),
		prt.KeyInnerEncryptionIV:   []byte(env.InnerIV),
		prt.KeyCreationTime:        []byte(utils.Int64ToString(info.CreationTimeMillis)),
		prt.KeyGenerationMethod:    []byte(info.GenerationMethod),
		prt.KeyMetadata:            meta,
	}
	if err := s.db.Write(puts, nil); err != nil {
		return fmt.Errorf("wallet: persist key pair: %w", err)
	}
	log.Info("key pair stored, address: ", info.VoterAddress)
	return nil
}

func (s *SecureStore) LoadPublicKey() (string, error) {
	return s.getString(prt.KeyPublicKey)
}

func (s *SecureStore) LoadVoterAddress() (string, error) {
	return s.getString(prt.KeyVoterAddress)
}

func (s *SecureStore) LoadGenerationMethod() (keygen.Method, error) {
	m, err := s.getString(prt.KeyGenerationMethod)
	return keygen.Method(m), err
}

func (s *SecureStore) LoadCreationTime() (int64, error) {
	v, err := s.getString(prt.KeyCreationTime)
	if err != nil {
		return 0, err
	}
	return utils.StringToInt64(v)
}

func (s *SecureStore) LoadEnvelope() (*envelope.Envelope, error) {
	ct, err := s.getString(prt.KeyEncryptedPrivateKey)
	if err != nil {
		return nil, err
	}
	iv, err := s.getString(prt.KeyEncryptionIV)
	if err != nil {
		return nil, err
	}
	innerIV, err := s.getString(prt.KeyInnerEncryptionIV)
	if err != nil {
		return nil, err
	}
	return &envelope.Envelope{
		Outer:   envelope.Blob{Ciphertext: ct, IV: iv},
		InnerIV: innerIV,
	}, nil
}

// LoadPrivateKey opens the envelope and records the access in the metadata.
// The caller must Wipe the returned key.
func (s *SecureStore) LoadPrivateKey() (*crypto.SecretKey, error) {
	env, err := s.LoadEnvelope()
	if err != nil {
		return nil, err
	}
	pt, err := s.enc.Open(env)
	if err != nil {
		return nil, err
	}
	defer utils.ZeroBytes(pt)

	sk, err := decodePrivateKey(pt)
	if err != nil {
		return nil, err
	}
	if err := s.recordAccess(); err != nil {
		sk.Wipe()
		log.Error("key access not recorded, withholding private key: ", err)
		return nil, fmt.Errorf("wallet: record key access: %w", err)
	}
	return sk, nil
}

// Exists reports whether every required field is present.
func (s *SecureStore) Exists() (bool, error) {
	for _, k := range prt.RequiredKeys {
		ok, err := s.db.Has([]byte(k))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Wipe deletes every stored field and both wrapping keys. It keeps going
// after a failure and reports all of them.
func (s *SecureStore) Wipe() error {
	deletes := make([][]byte, 0, len(prt.AllKeys))
	for _, k := range prt.AllKeys {
		deletes = append(deletes, []byte(k))
	}
	var errs []error
	if err := s.db.Write(nil, deletes); err != nil {
		errs = append(errs, fmt.Errorf("wallet: delete stored fields: %w", err))
	}
	if err := s.enc.DestroyKeys(); err != nil {
		errs = append(errs, fmt.Errorf("wallet: destroy wrapping keys: %w", err))
	}
	if len(errs) == 0 {
		log.Info("stored key pair wiped")
	}
	return errors.Join(errs...)
}

// LoadMetadata returns the stored metadata, rebuilding it from the creation
// time and generation method when the record is missing.
func (s *SecureStore) LoadMetadata() (*KeyMetadata, error) {
	raw, err := s.db.Get([]byte(prt.KeyMetadata))
	if err == nil {
		meta := new(KeyMetadata)
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("wallet: decode metadata: %w", err)
		}
		return meta, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	created, err := s.LoadCreationTime()
	if err != nil {
		return nil, err
	}
	method, err := s.LoadGenerationMethod()
	if err != nil {
		return nil, err
	}
	return &KeyMetadata{
		CreationTime:     created,
		LastAccessTime:   created,
		KeyVersion:       s.keyVersion,
		GenerationMethod: method,
	}, nil
}

func (s *SecureStore) SaveMetadata(meta *KeyMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Write(map[string][]byte{prt.KeyMetadata: raw}, nil)
}

func (s *SecureStore) recordAccess() error {
	meta, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	meta.AccessCount++
	meta.LastAccessTime = s.now().UnixMilli()
	return s.SaveMetadata(meta)
}

func (s *SecureStore) getString(key string) (string, error) {
	v, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// normalizePrivateKeyHex strips 0x, lower-cases and left-pads to 64 hex
// characters. Longer payloads are rejected. The result is a fresh buffer.
func normalizePrivateKeyHex(payload []byte) ([]byte, error) {
	if len(payload) >= 2 && payload[0] == '0' && (payload[1] == 'x' || payload[1] == 'X') {
		payload = payload[2:]
	}
	const size = crypto.PrivateKeySize * 2
	if len(payload) == 0 || len(payload) > size {
		return nil, fmt.Errorf("%w: %d hex characters", ErrMalformedPrivateKey, len(payload))
	}
	out := make([]byte, size)
	pad := size - len(payload)
	for i := 0; i < pad; i++ {
		out[i] = '0'
	}
	for i, c := range payload {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
			c += 'a' - 'A'
		default:
			utils.ZeroBytes(out)
			return nil, fmt.Errorf("%w: non-hex character", ErrMalformedPrivateKey)
		}
		out[pad+i] = c
	}
	return out, nil
}

func decodePrivateKey(payload []byte) (*crypto.SecretKey, error) {
	normalized, err := normalizePrivateKeyHex(payload)
	if err != nil {
		return nil, err
	}
	defer utils.ZeroBytes(normalized)

	sk := new(crypto.SecretKey)
	if _, err := hex.Decode(sk[:], normalized); err != nil {
		sk.Wipe()
		return nil, fmt.Errorf("%w: %v", ErrMalformedPrivateKey, err)
	}
	if !crypto.IsValidScalar(sk[:]) {
		sk.Wipe()
		return nil, fmt.Errorf("%w: scalar out of range", ErrMalformedPrivateKey)
	}
	return sk, nil
}
