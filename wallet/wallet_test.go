package wallet

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/abcfe/voterkey/common/crypto"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/config"
	"github.com/abcfe/voterkey/keygen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyManagerEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	m := env.manager

	assert.False(t, m.HasStoredKeyPair())
	sk, err := m.GetPrivateKey()
	assert.Nil(t, sk)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	info, err := m.GenerateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, keygen.MethodPrimary, info.GenerationMethod)
	require.NoError(t, m.StoreKeyPair(info))
	want := info.PrivateKey.Clone()
	defer want.Wipe()
	info.Wipe()

	assert.True(t, m.HasStoredKeyPair())
	assert.True(t, m.ValidateStoredKeys())

	pub, err := m.GetPublicKey()
	require.NoError(t, err)
	assert.Equal(t, info.PublicKey, pub)
	addr, err := m.GetVoterAddress()
	require.NoError(t, err)
	assert.Equal(t, info.VoterAddress, addr)

	sk, err = m.GetPrivateKey()
	require.NoError(t, err)
	assert.True(t, sk.Equal(want))
	derived, err := crypto.DeriveAddress(sk)
	require.NoError(t, err)
	sk.Wipe()
	assert.Equal(t, addr, utils.AddressToString(derived))

	hash := crypto.Keccak256([]byte("ballot"))
	sig, err := m.SignHash(hash)
	require.NoError(t, err)
	recovered, err := crypto.RecoverPublicKey(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, pub, utils.PublicKeyToString(recovered))

	meta, err := m.Metadata()
	require.NoError(t, err)
	// validation, GetPrivateKey and SignHash each read the key once
	assert.Equal(t, int64(3), meta.AccessCount)

	bundle, err := m.ExportKeysForBackup(true)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle)

	require.NoError(t, m.ClearStoredKeys())
	assert.False(t, m.HasStoredKeyPair())
	assert.False(t, m.ValidateStoredKeys())
	_, err = m.GetPrivateKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = m.RestoreFromBackup(bundle)
	assert.Error(t, err)

	var out bytes.Buffer
	require.NoError(t, m.Metrics().WriteText(&out))
	assert.Contains(t, out.String(), `voterkey_wallet_keypairs_generated_total{method="EC_SECP256K1_PRIMARY"} 1`)
	assert.Contains(t, out.String(), `voterkey_wallet_wipes_total{result="ok"} 1`)
	assert.Contains(t, out.String(), "# TYPE voterkey_wallet_wipes_total counter")
}

func TestCreateWallet(t *testing.T) {
	env := newTestEnv(t)
	addr, method, err := env.manager.CreateWallet()
	require.NoError(t, err)
	assert.Equal(t, keygen.MethodPrimary, method)
	assert.Len(t, addr, 42)

	stored, err := env.manager.GetVoterAddress()
	require.NoError(t, err)
	assert.Equal(t, addr, stored)
}

func TestGenerationFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	m := NewKeyManager(config.Default().Wallet, keygen.NewGenerator(), env.db, env.custodian, nil)
	_, err := m.GenerateKeyPair()
	assert.ErrorIs(t, err, keygen.ErrAllStrategiesExhausted)
}

func TestConcurrentHybridGenerationSharesAlias(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.Default().Wallet
	hybrid := &keygen.HybridEntropyStrategy{
		Custodian: env.custodian,
		Alias:     cfg.AliasPrefix + "entropy",
		Rand:      rand.Reader,
		Now:       time.Now,
	}
	m := NewKeyManager(cfg, keygen.NewGenerator(hybrid), env.db, env.custodian, nil)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := m.GenerateKeyPair()
			if err != nil {
				errs <- err
				return
			}
			info.Wipe()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	ok, err := env.custodian.HasKey(cfg.AliasPrefix + "entropy")
	require.NoError(t, err)
	assert.False(t, ok)
}
