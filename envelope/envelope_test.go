package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/custodian"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestEncryptor(t *testing.T) (*Encryptor, *custodian.Software) {
	t.Helper()
	c := custodian.NewSoftware()
	e := NewEncryptor(c, "test_master", "test_encryption")
	require.NoError(t, e.EnsureKeys())
	return e, c
}

func flipBase64(t *testing.T, s string, idx int) string {
	t.Helper()
	raw, err := utils.DecodeBase64(s)
	require.NoError(t, err)
	raw[idx] ^= 0x01
	return utils.EncodeBase64(raw)
}

func TestSealOpenRoundTrip(t *testing.T) {
	e, _ := newTestEncryptor(t)

	env, err := e.Seal([]byte(testKey))
	require.NoError(t, err)
	assert.NotEqual(t, env.Outer.IV, env.InnerIV)
	assert.NotContains(t, env.Outer.Ciphertext, testKey[2:])

	pt, err := e.Open(env)
	require.NoError(t, err)
	assert.Equal(t, testKey, string(pt))
}

func TestSealOpenRandomPayloads(t *testing.T) {
	e, _ := newTestEncryptor(t)

	for i := 0; i < 64; i++ {
		raw := make([]byte, 1+i%32)
		_, err := rand.Read(raw)
		require.NoError(t, err)
		payload := hex.EncodeToString(raw)

		env, err := e.Seal([]byte(payload))
		require.NoError(t, err)
		pt, err := e.Open(env)
		require.NoError(t, err)
		assert.Equal(t, payload, string(pt), "payload %d", i)
	}
}

func TestEnsureKeysIsIdempotent(t *testing.T) {
	e, _ := newTestEncryptor(t)
	env, err := e.Seal([]byte(testKey))
	require.NoError(t, err)

	// existing keys must not be replaced
	require.NoError(t, e.EnsureKeys())
	_, err = e.Open(env)
	require.NoError(t, err)
}

func TestOpenFailsClosed(t *testing.T) {
	e, _ := newTestEncryptor(t)
	env, err := e.Seal([]byte(testKey))
	require.NoError(t, err)

	cases := map[string]func(*Envelope){
		"outer ciphertext bit": func(v *Envelope) { v.Outer.Ciphertext = flipBase64(t, v.Outer.Ciphertext, 3) },
		"outer tag bit": func(v *Envelope) {
			raw, _ := utils.DecodeBase64(v.Outer.Ciphertext)
			v.Outer.Ciphertext = flipBase64(t, v.Outer.Ciphertext, len(raw)-1)
		},
		"outer iv bit":   func(v *Envelope) { v.Outer.IV = flipBase64(t, v.Outer.IV, 0) },
		"inner iv bit":   func(v *Envelope) { v.InnerIV = flipBase64(t, v.InnerIV, 11) },
		"short iv":       func(v *Envelope) { v.Outer.IV = utils.EncodeBase64(make([]byte, 8)) },
		"bad base64":     func(v *Envelope) { v.Outer.Ciphertext = "!!not base64!!" },
		"swapped ivs":    func(v *Envelope) { v.Outer.IV, v.InnerIV = v.InnerIV, v.Outer.IV },
		"empty envelope": func(v *Envelope) { *v = Envelope{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bad := *env
			mutate(&bad)
			pt, err := e.Open(&bad)
			assert.ErrorIs(t, err, ErrDecryption)
			assert.Nil(t, pt)
		})
	}
}

func TestOpenAfterDestroyKeys(t *testing.T) {
	e, c := newTestEncryptor(t)
	env, err := e.Seal([]byte(testKey))
	require.NoError(t, err)

	require.NoError(t, e.DestroyKeys())
	ok, err := c.HasKey(e.MasterAlias())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Open(env)
	assert.ErrorIs(t, err, ErrDecryption)

	// fresh keys cannot open the old envelope either
	require.NoError(t, e.EnsureKeys())
	_, err = e.Open(env)
	assert.ErrorIs(t, err, ErrDecryption)
}

type failingCustodian struct {
	custodian.Custodian
}

func (failingCustodian) Encrypt(string, []byte) ([]byte, []byte, error) {
	return nil, nil, errors.New("token removed")
}

func TestSealReportsEncryptionError(t *testing.T) {
	e := NewEncryptor(failingCustodian{custodian.NewSoftware()}, "m", "e")
	_, err := e.Seal([]byte(testKey))
	assert.ErrorIs(t, err, ErrEncryption)
}
