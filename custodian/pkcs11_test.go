//go:build cgo

package custodian

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run against SoftHSM:
//
//	softhsm2-util --init-token --free --label voterkey --pin 1234 --so-pin 1234
//	VOTERKEY_PKCS11_LIB=/usr/lib/softhsm/libsofthsm2.so VOTERKEY_PKCS11_SLOT=<slot> VOTERKEY_PKCS11_PIN=1234 go test ./custodian
func openTestPKCS11(t *testing.T) *PKCS11 {
	t.Helper()
	lib := os.Getenv("VOTERKEY_PKCS11_LIB")
	if lib == "" {
		t.Skip("VOTERKEY_PKCS11_LIB not set")
	}
	slot, _ := strconv.ParseUint(os.Getenv("VOTERKEY_PKCS11_SLOT"), 10, 64)
	p, err := NewPKCS11(lib, uint(slot), os.Getenv("VOTERKEY_PKCS11_PIN"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPKCS11RoundTrip(t *testing.T) {
	p := openTestPKCS11(t)
	alias := "voterkey_test_" + strconv.FormatInt(int64(os.Getpid()), 10)
	require.NoError(t, p.GenerateKey(alias))
	defer p.DeleteKey(alias)

	ok, err := p.HasKey(alias)
	require.NoError(t, err)
	assert.True(t, ok)

	ct, iv, err := p.Encrypt(alias, []byte("payload"))
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)

	pt, err := p.Decrypt(alias, ct, iv)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pt)

	ct[0] ^= 0x01
	_, err = p.Decrypt(alias, ct, iv)
	assert.ErrorIs(t, err, ErrAuthFailed)

	require.NoError(t, p.DeleteKey(alias))
	ok, err = p.HasKey(alias)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewPKCS11RejectsEmptyLibrary(t *testing.T) {
	_, err := NewPKCS11("", 0, "")
	assert.ErrorIs(t, err, ErrUnavailable)
}
