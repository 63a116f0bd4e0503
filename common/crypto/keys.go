package crypto

import (
	"errors"
	"fmt"

	prt "github.com/abcfe/voterkey/protocol"
	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")
	ErrInvalidPublicKey  = errors.New("crypto: invalid public key")
	ErrInvalidSignature  = errors.New("crypto: invalid signature")
)

// IsValidScalar reports whether b is a 32-byte big-endian integer in [1, n-1]
// for the secp256k1 group order n.
func IsValidScalar(b []byte) bool {
	if len(b) != PrivateKeySize {
		return false
	}
	var s btcec.ModNScalar
	overflow := s.SetByteSlice(b)
	valid := !overflow && !s.IsZero()
	s.Zero()
	return valid
}

// toPrivateKey builds a btcec key from a validated scalar. The caller must
// Zero the returned key.
func toPrivateKey(sk *SecretKey) (*btcec.PrivateKey, error) {
	if sk == nil || !IsValidScalar(sk[:]) {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}
	priv, _ := btcec.PrivKeyFromBytes(sk[:])
	return priv, nil
}

// DerivePublicKey computes the uncompressed public point for sk.
func DerivePublicKey(sk *SecretKey) (prt.PublicKey, error) {
	priv, err := toPrivateKey(sk)
	if err != nil {
		return prt.PublicKey{}, err
	}
	defer priv.Zero()

	return SerializePublicKey(priv.PubKey()), nil
}

// SerializePublicKey drops the 0x04 marker from the uncompressed encoding.
func SerializePublicKey(pub *btcec.PublicKey) prt.PublicKey {
	var out prt.PublicKey
	if pub == nil {
		return out
	}
	uncompressed := pub.SerializeUncompressed()
	copy(out[:], uncompressed[1:])
	return out
}

// ParsePublicKey checks that pub is a point on secp256k1.
func ParsePublicKey(pub prt.PublicKey) (*btcec.PublicKey, error) {
	buf := make([]byte, 1+len(pub))
	buf[0] = 0x04
	copy(buf[1:], pub[:])

	key, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return key, nil
}
