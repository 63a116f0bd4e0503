package crypto

import (
	"strings"
	"testing"

	"github.com/abcfe/voterkey/common/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addressVectors = []struct {
	name       string
	privateKey string
	address    string
}{
	{
		name:       "scalar one",
		privateKey: "0x0000000000000000000000000000000000000000000000000000000000000001",
		address:    "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
	},
	{
		name:       "web3 account example",
		privateKey: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		address:    "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23",
	},
}

func TestDeriveAddressVectors(t *testing.T) {
	for _, tc := range addressVectors {
		t.Run(tc.name, func(t *testing.T) {
			sk, err := SecretKeyFromHex(tc.privateKey)
			require.NoError(t, err)
			defer sk.Wipe()

			// Deterministic across repeated derivations
			for i := 0; i < 3; i++ {
				addr, err := DeriveAddress(sk)
				require.NoError(t, err)
				assert.Equal(t, tc.address, AddressTo0xPrefixString(addr))
			}
		})
	}
}

func TestPublicKeyOfScalarOneIsGenerator(t *testing.T) {
	sk, err := SecretKeyFromHex(addressVectors[0].privateKey)
	require.NoError(t, err)

	pub, err := DerivePublicKey(sk)
	require.NoError(t, err)

	gx := "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	gy := "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	assert.Equal(t, "0x"+gx+gy, utils.PublicKeyToString(pub))

	_, err = ParsePublicKey(pub)
	require.NoError(t, err)
}

func TestIsValidScalar(t *testing.T) {
	order := "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	orderMinusOne := "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364140"

	cases := map[string]bool{
		strings.Repeat("00", 32): false,
		order:                    false,
		strings.Repeat("ff", 32): false,
		orderMinusOne:            true,
		strings.Repeat("00", 31) + "01": true,
	}
	for in, want := range cases {
		b, err := utils.HexToBytes(in)
		require.NoError(t, err)
		assert.Equal(t, want, IsValidScalar(b), in)
	}

	assert.False(t, IsValidScalar(make([]byte, 31)))
}

func TestSecretKeyFromHexRejectsWrongLength(t *testing.T) {
	_, err := SecretKeyFromHex("0x1234")
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = SecretKeyFromHex("0x" + strings.Repeat("ab", 33))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = SecretKeyFromHex("0x" + strings.Repeat("zz", 32))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestSecretKeyHexAndWipe(t *testing.T) {
	sk, err := SecretKeyFromHex(strings.ToUpper(addressVectors[1].privateKey[2:]))
	require.NoError(t, err)

	assert.Equal(t, addressVectors[1].privateKey, sk.Hex())
	assert.Equal(t, "SecretKey(redacted)", sk.String())

	clone := sk.Clone()
	assert.True(t, sk.Equal(clone))

	sk.Wipe()
	assert.True(t, sk.IsZero())
	assert.False(t, clone.IsZero())
	assert.False(t, sk.Equal(clone))
}

func TestDerivePublicKeyRejectsZero(t *testing.T) {
	_, err := DerivePublicKey(new(SecretKey))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestSignAndRecover(t *testing.T) {
	sk, err := SecretKeyFromHex(addressVectors[1].privateKey)
	require.NoError(t, err)

	pub, err := DerivePublicKey(sk)
	require.NoError(t, err)

	hash := Keccak256([]byte("ballot"))
	sig, err := SignHash(sk, hash)
	require.NoError(t, err)
	assert.LessOrEqual(t, sig[64], byte(1))

	recovered, err := RecoverPublicKey(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, pub, recovered)
	assert.True(t, VerifySignature(pub, hash, sig))

	other := Keccak256([]byte("other ballot"))
	assert.False(t, VerifySignature(pub, other, sig))

	sig[64] = 7
	_, err = RecoverPublicKey(hash, sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestKeccak256EmptyInput(t *testing.T) {
	h := Keccak256()
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", strings.TrimPrefix(utils.BytesTo0xHex(h[:]), "0x"))
}
