package wallet

import (
	"testing"

	prt "github.com/abcfe/voterkey/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStoredKeyPair(t *testing.T) {
	env := newTestEnv(t)
	info := knownKeyPair(t)
	defer info.Wipe()
	require.NoError(t, env.manager.store.Persist(info))

	report, err := env.manager.validator.Validate()
	require.NoError(t, err)
	assert.True(t, report.Valid())
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	info := knownKeyPair(t)
	defer info.Wipe()
	require.NoError(t, env.manager.store.Persist(info))
	require.NoError(t, env.db.Put([]byte(prt.KeyVoterAddress), []byte("0x2C7536E3605D9C16A7A3D7B1898E529396A65C23")))

	report, err := env.manager.validator.Validate()
	require.NoError(t, err)
	assert.True(t, report.Valid())
}

func TestValidateDetectsMismatch(t *testing.T) {
	other := knownKeyPair(t)
	defer other.Wipe()

	cases := map[string]struct {
		key   string
		value string
		check func(*testing.T, *ValidationReport)
	}{
		"address": {
			key:   prt.KeyVoterAddress,
			value: "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
			check: func(t *testing.T, r *ValidationReport) {
				assert.True(t, r.PublicKeyMatches)
				assert.False(t, r.AddressMatches)
			},
		},
		"public key": {
			key:   prt.KeyPublicKey,
			value: "0x79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
			check: func(t *testing.T, r *ValidationReport) {
				assert.False(t, r.PublicKeyMatches)
				assert.False(t, r.SignatureRecovers)
				assert.True(t, r.AddressMatches)
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			info := knownKeyPair(t)
			defer info.Wipe()
			require.NoError(t, env.manager.store.Persist(info))
			require.NoError(t, env.db.Put([]byte(tc.key), []byte(tc.value)))

			report, err := env.manager.validator.Validate()
			require.NoError(t, err)
			assert.False(t, report.Valid())
			tc.check(t, report)
			assert.False(t, env.manager.ValidateStoredKeys())
		})
	}
}

func TestValidateWithoutStoredKeys(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.validator.Validate()
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.False(t, env.manager.ValidateStoredKeys())
}

func TestValidateDetectsSwappedPrivateKey(t *testing.T) {
	env := newTestEnv(t)
	info := knownKeyPair(t)
	defer info.Wipe()
	require.NoError(t, env.manager.store.Persist(info))

	sealed, err := env.manager.encryptor.Seal([]byte("0x01"))
	require.NoError(t, err)
	require.NoError(t, env.db.Write(map[string][]byte{
		prt.KeyEncryptedPrivateKey: []byte(sealed.Outer.Ciphertext),
		prt.KeyEncryptionIV:        []byte(sealed.Outer.IV),
		prt.KeyInnerEncryptionIV:   []byte(sealed.InnerIV),
	}, nil))

	report, err := env.manager.validator.Validate()
	require.NoError(t, err)
	assert.False(t, report.PublicKeyMatches)
	assert.False(t, report.AddressMatches)
	assert.False(t, report.SignatureRecovers)
	assert.False(t, report.Valid())
}
