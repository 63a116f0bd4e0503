// Package keygen produces secp256k1 key pairs through an ordered chain of
// fallback strategies. The first strategy that succeeds wins.
package keygen

import (
	"errors"
	"fmt"

	"github.com/abcfe/voterkey/common/crypto"
	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	prt "github.com/abcfe/voterkey/protocol"
	"github.com/abcfe/voterkey/provider"
)

// Method tags the strategy that produced a key pair. The values are stored
// alongside the key and must stay stable.
type Method string

const (
	MethodPrimary          Method = "EC_SECP256K1_PRIMARY"
	MethodPlatform         Method = "EC_PLATFORM_SECP256K1"
	MethodPlatformDegraded Method = "EC_PLATFORM_DEGRADED_P256"
	MethodRawEntropy       Method = "RAW_ENTROPY"
	MethodHybridEntropy    Method = "HYBRID_ENTROPY"
)

var (
	ErrAllStrategiesExhausted = errors.New("keygen: all generation strategies failed")
	ErrEntropyExhausted       = errors.New("keygen: no valid scalar within attempt limit")
	ErrProviderUnavailable    = provider.ErrProviderUnavailable
)

// Result is a freshly generated key pair. Wipe it once the private key has
// been handed to the secure store.
type Result struct {
	PrivateKey *crypto.SecretKey
	PublicKey  prt.PublicKey
	Address    prt.Address
	Method     Method
}

func (r *Result) PublicKeyHex() string { return utils.PublicKeyToString(r.PublicKey) }
func (r *Result) AddressHex() string   { return utils.AddressToString(r.Address) }

func (r *Result) Wipe() {
	if r != nil {
		r.PrivateKey.Wipe()
	}
}

type Strategy interface {
	Method() Method
	Attempt() (*Result, error)
}

type StrategyError struct {
	Method Method
	Err    error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

type Generator struct {
	strategies []Strategy
}

func NewGenerator(strategies ...Strategy) *Generator {
	return &Generator{strategies: strategies}
}

// Methods lists the strategy order.
func (g *Generator) Methods() []Method {
	out := make([]Method, 0, len(g.strategies))
	for _, s := range g.strategies {
		out = append(out, s.Method())
	}
	return out
}

func (g *Generator) Generate() (*Result, error) {
	var errs []error
	for _, s := range g.strategies {
		res, err := s.Attempt()
		if err == nil {
			log.Info("key pair generated, method: ", res.Method, ", address: ", res.AddressHex())
			return res, nil
		}
		var se *StrategyError
		if !errors.As(err, &se) {
			err = &StrategyError{Method: s.Method(), Err: err}
		}
		log.Warn("key generation strategy failed: ", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrAllStrategiesExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrAllStrategiesExhausted, errors.Join(errs...))
}

// fromScalar normalizes a big-endian scalar to 32 bytes, validates it
// against the secp256k1 order and derives the public key and address. The
// input slice is zeroed.
func fromScalar(scalar []byte, method Method) (*Result, error) {
	defer utils.ZeroBytes(scalar)
	if len(scalar) > crypto.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d byte scalar", crypto.ErrInvalidPrivateKey, len(scalar))
	}
	padded := make([]byte, crypto.PrivateKeySize)
	defer utils.ZeroBytes(padded)
	copy(padded[crypto.PrivateKeySize-len(scalar):], scalar)

	if !crypto.IsValidScalar(padded) {
		return nil, fmt.Errorf("%w: scalar out of range", crypto.ErrInvalidPrivateKey)
	}
	sk, err := crypto.NewSecretKey(padded)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.DerivePublicKey(sk)
	if err != nil {
		sk.Wipe()
		return nil, err
	}
	return &Result{
		PrivateKey: sk,
		PublicKey:  pub,
		Address:    crypto.PublicKeyToAddress(pub),
		Method:     method,
	}, nil
}
