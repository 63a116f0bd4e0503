package utils

import (
	"strings"
	"testing"

	prt "github.com/abcfe/voterkey/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexHelpers(t *testing.T) {
	assert.True(t, Has0xPrefix("0xab"))
	assert.True(t, Has0xPrefix("0Xab"))
	assert.False(t, Has0xPrefix("ab"))
	assert.Equal(t, "ab", Strip0x("0xab"))
	assert.True(t, EqualHex("0xABcd", "abCD"))

	b, err := HexToBytes("0x00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, b)
	assert.Equal(t, "0x00ff", BytesTo0xHex(b))

	_, err = HexToBytes("0xzz")
	assert.Error(t, err)
}

func TestAddressConversion(t *testing.T) {
	addr, err := StringToAddress("0x2C7536E3605D9C16A7A3D7B1898E529396A65C23")
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23", AddressToString(addr))

	_, err = StringToAddress("0x1234")
	assert.Error(t, err)
}

func TestPublicKeyConversion(t *testing.T) {
	body := strings.Repeat("ab", 64)

	pub, err := StringToPublicKey("0x" + body)
	require.NoError(t, err)
	assert.Equal(t, "0x"+body, PublicKeyToString(pub))

	prefixed, err := StringToPublicKey("0x04" + body)
	require.NoError(t, err)
	assert.Equal(t, pub, prefixed)

	_, err = StringToPublicKey("0x02" + body[:64])
	assert.Error(t, err)
}

func TestSignatureConversion(t *testing.T) {
	var sig prt.Signature
	sig[64] = 1
	parsed, err := StringToSignature(SignatureToString(sig))
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = StringToSignature("0x00")
	assert.Error(t, err)
}

func TestBase64AndInt64(t *testing.T) {
	raw, err := DecodeBase64(EncodeBase64([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	n, err := StringToInt64(Int64ToString(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), n)
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ZeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/voter")
	assert.Equal(t, "/home/voter/.voterkey", ExpandHome("~/.voterkey"))
	assert.Equal(t, "/var/lib/voterkey", ExpandHome("/var/lib/voterkey"))
}

func TestCustodianKeyNames(t *testing.T) {
	assert.Equal(t, []byte("custodian:key:voter_wallet_master"), GetCustodianKeyName("voter_wallet_master"))
	assert.Equal(t, []byte("custodian:kdf"), GetCustodianKDFName())
}
