package crypto

import (
	"fmt"

	prt "github.com/abcfe/voterkey/protocol"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// compactHeaderBase is the btcec compact-signature header for an uncompressed key
const compactHeaderBase = 27

// SignHash produces a recoverable R || S || V signature over a 32-byte hash.
// S is normalized to the lower half of the order.
func SignHash(sk *SecretKey, hash prt.Hash) (prt.Signature, error) {
	var sig prt.Signature

	priv, err := toPrivateKey(sk)
	if err != nil {
		return sig, err
	}
	defer priv.Zero()

	compact := ecdsa.SignCompact(priv, hash[:], false)
	if len(compact) != len(sig) {
		return sig, fmt.Errorf("%w: compact signature length %d", ErrInvalidSignature, len(compact))
	}

	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - compactHeaderBase
	return sig, nil
}

// RecoverPublicKey returns the public key that produced sig over hash
func RecoverPublicKey(hash prt.Hash, sig prt.Signature) (prt.PublicKey, error) {
	recoveryID := sig[64]
	if recoveryID > 1 {
		return prt.PublicKey{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, recoveryID)
	}

	compact := make([]byte, len(sig))
	compact[0] = compactHeaderBase + recoveryID
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return prt.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return SerializePublicKey(pub), nil
}

// VerifySignature checks that sig over hash recovers to publicKey
func VerifySignature(publicKey prt.PublicKey, hash prt.Hash, sig prt.Signature) bool {
	recovered, err := RecoverPublicKey(hash, sig)
	if err != nil {
		return false
	}
	return recovered == publicKey
}
