package crypto

import (
	"github.com/abcfe/voterkey/common/utils"
	prt "github.com/abcfe/voterkey/protocol"
	"golang.org/x/crypto/sha3"
)

// Keccak256 is the legacy (pre-NIST padding) Keccak used by Ethereum-style chains
func Keccak256(data ...[]byte) prt.Hash {
	var out prt.Hash
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	h.Sum(out[:0])
	return out
}

// PublicKeyToAddress takes the last 20 bytes of Keccak256(X || Y)
func PublicKeyToAddress(publicKey prt.PublicKey) prt.Address {
	hash := Keccak256(publicKey[:])

	var address prt.Address
	copy(address[:], hash[len(hash)-len(address):])
	return address
}

// Add 0x prefix to address
func AddressTo0xPrefixString(address prt.Address) string {
	return utils.AddressToString(address)
}

// DeriveAddress goes straight from a private scalar to the voter address
func DeriveAddress(sk *SecretKey) (prt.Address, error) {
	pub, err := DerivePublicKey(sk)
	if err != nil {
		return prt.Address{}, err
	}
	return PublicKeyToAddress(pub), nil
}
