package wallet

import (
	"testing"

	"github.com/abcfe/voterkey/common/crypto"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/config"
	"github.com/abcfe/voterkey/custodian"
	"github.com/abcfe/voterkey/keygen"
	"github.com/abcfe/voterkey/storage"
	"github.com/stretchr/testify/require"
)

const (
	knownPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	knownAddress    = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
)

type testEnv struct {
	db        *storage.DB
	custodian *custodian.Software
	manager   *KeyManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.NewMemDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := custodian.NewSoftware()
	cfg := config.Default().Wallet
	return &testEnv{
		db:        db,
		custodian: c,
		manager:   NewKeyManager(cfg, nil, db, c, nil),
	}
}

func knownKeyPair(t *testing.T) *KeyPairInfo {
	t.Helper()
	sk, err := crypto.SecretKeyFromHex(knownPrivateKey)
	require.NoError(t, err)
	pub, err := crypto.DerivePublicKey(sk)
	require.NoError(t, err)
	return &KeyPairInfo{
		PublicKey:          utils.PublicKeyToString(pub),
		PrivateKey:         sk,
		VoterAddress:       knownAddress,
		CreationTimeMillis: 1700000000000,
		GenerationMethod:   keygen.MethodPrimary,
	}
}
