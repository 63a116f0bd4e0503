package wallet

import (
	"github.com/abcfe/voterkey/common/crypto"
	"github.com/abcfe/voterkey/common/utils"
)

// validationMessage is signed and recovered to prove the stored key is usable.
const validationMessage = "voterkey:validation:v1"

type ValidationReport struct {
	PublicKeyMatches  bool
	AddressMatches    bool
	SignatureRecovers bool
}

func (r *ValidationReport) Valid() bool {
	return r != nil && r.PublicKeyMatches && r.AddressMatches && r.SignatureRecovers
}

type Validator struct {
	store *SecureStore
}

func NewValidator(store *SecureStore) *Validator {
	return &Validator{store: store}
}

// Validate re-derives the public key and address from the stored private key
// and runs a sign/recover round trip. An error means the stored data is
// missing or unreadable; a mismatch is reported, not returned as an error.
func (v *Validator) Validate() (*ValidationReport, error) {
	pub, err := v.store.LoadPublicKey()
	if err != nil {
		return nil, err
	}
	addr, err := v.store.LoadVoterAddress()
	if err != nil {
		return nil, err
	}
	sk, err := v.store.LoadPrivateKey()
	if err != nil {
		return nil, err
	}
	defer sk.Wipe()

	return checkKeyPair(sk, pub, addr)
}

func checkKeyPair(sk *crypto.SecretKey, publicKey, address string) (*ValidationReport, error) {
	derivedPub, err := crypto.DerivePublicKey(sk)
	if err != nil {
		return nil, err
	}
	derivedAddr := crypto.PublicKeyToAddress(derivedPub)

	report := &ValidationReport{
		PublicKeyMatches: utils.EqualHex(publicKey, utils.PublicKeyToString(derivedPub)),
		AddressMatches:   utils.EqualHex(address, utils.AddressToString(derivedAddr)),
	}

	hash := crypto.Keccak256([]byte(validationMessage))
	sig, err := crypto.SignHash(sk, hash)
	if err != nil {
		return report, nil
	}
	recovered, err := crypto.RecoverPublicKey(hash, sig)
	if err != nil {
		return report, nil
	}
	stored, err := utils.StringToPublicKey(publicKey)
	report.SignatureRecovers = err == nil && recovered == derivedPub && recovered == stored
	return report, nil
}
