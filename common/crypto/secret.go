package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/abcfe/voterkey/common/utils"
)

const PrivateKeySize = 32

// SecretKey holds a raw secp256k1 private scalar in a fixed-size buffer so it
// can be zeroed in place. Call Wipe as soon as the key is no longer needed.
type SecretKey [PrivateKeySize]byte

// NewSecretKey copies b into a new SecretKey. b is not modified.
func NewSecretKey(b []byte) (*SecretKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrInvalidPrivateKey, len(b), PrivateKeySize)
	}
	k := new(SecretKey)
	copy(k[:], b)
	return k, nil
}

// SecretKeyFromHex decodes exactly 64 hex characters, with or without 0x.
// The intermediate decode buffer is zeroed.
func SecretKeyFromHex(str string) (*SecretKey, error) {
	payload := utils.Strip0x(str)
	if len(payload) != PrivateKeySize*2 {
		return nil, fmt.Errorf("%w: got %d hex characters, need %d", ErrInvalidPrivateKey, len(payload), PrivateKeySize*2)
	}
	k := new(SecretKey)
	if _, err := hex.Decode(k[:], []byte(payload)); err != nil {
		k.Wipe()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return k, nil
}

// Bytes returns a slice aliasing the key buffer. Wiping the key wipes the slice.
func (k *SecretKey) Bytes() []byte {
	return k[:]
}

// HexBytes returns "0x" followed by lower-case hex as a byte slice the caller
// owns and should zero after use.
func (k *SecretKey) HexBytes() []byte {
	out := make([]byte, 2+hex.EncodedLen(PrivateKeySize))
	out[0], out[1] = '0', 'x'
	hex.Encode(out[2:], k[:])
	return out
}

// Hex returns the 0x-prefixed lower-case hex encoding. The returned string is
// immutable and cannot be wiped; prefer HexBytes on sensitive paths.
func (k *SecretKey) Hex() string {
	b := k.HexBytes()
	defer utils.ZeroBytes(b)
	return string(b)
}

// Clone returns an independent copy.
func (k *SecretKey) Clone() *SecretKey {
	c := new(SecretKey)
	copy(c[:], k[:])
	return c
}

// Equal compares in constant time.
func (k *SecretKey) Equal(other *SecretKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// IsZero reports whether every byte is zero.
func (k *SecretKey) IsZero() bool {
	var acc byte
	for _, b := range k {
		acc |= b
	}
	return acc == 0
}

// Wipe zeroes the key. Safe on nil.
func (k *SecretKey) Wipe() {
	if k == nil {
		return
	}
	utils.ZeroBytes(k[:])
}

// String never prints key material.
func (k *SecretKey) String() string {
	return "SecretKey(redacted)"
}

// GoString never prints key material.
func (k *SecretKey) GoString() string {
	return k.String()
}
