package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/abcfe/voterkey/common/crypto"
	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
	"github.com/abcfe/voterkey/custodian"
	"github.com/abcfe/voterkey/provider"
	"golang.org/x/crypto/hkdf"
)

// maxSampleAttempts bounds rejection sampling. The chance a uniform 256-bit
// value is rejected is about 2^-128, so hitting the bound means the source
// is broken.
const maxSampleAttempts = 128

const hybridInfo = "voterkey hybrid entropy v1"

// Options configures the default strategy chain.
type Options struct {
	Registry  *provider.Registry
	Platform  provider.Provider
	Custodian custodian.Custodian

	// EphemeralAlias names the throwaway custodian key used by the hybrid
	// strategy. It is deleted after every attempt.
	EphemeralAlias string

	Rand io.Reader
	Now  func() time.Time
}

func (o *Options) withDefaults() {
	if o.Registry == nil {
		o.Registry = provider.Default
	}
	if o.Platform == nil {
		o.Platform = provider.NewPlatformProvider()
	}
	if o.EphemeralAlias == "" {
		o.EphemeralAlias = "voter_wallet_entropy"
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DefaultStrategies returns primary, platform, raw entropy and, when a
// custodian is configured, hybrid entropy, in that order.
func DefaultStrategies(opts Options) []Strategy {
	opts.withDefaults()
	out := []Strategy{
		&PrimaryStrategy{Registry: opts.Registry, Rand: opts.Rand},
		&PlatformStrategy{Provider: opts.Platform, Rand: opts.Rand},
		&RawEntropyStrategy{Rand: opts.Rand},
	}
	if opts.Custodian != nil {
		out = append(out, &HybridEntropyStrategy{
			Custodian: opts.Custodian,
			Alias:     opts.EphemeralAlias,
			Rand:      opts.Rand,
			Now:       opts.Now,
		})
	}
	return out
}

func NewDefaultGenerator(opts Options) *Generator {
	return NewGenerator(DefaultStrategies(opts)...)
}

// PrimaryStrategy asks the registry's primary provider for a secp256k1 key.
type PrimaryStrategy struct {
	Registry *provider.Registry
	Rand     io.Reader
}

func (*PrimaryStrategy) Method() Method { return MethodPrimary }

func (s *PrimaryStrategy) Attempt() (*Result, error) {
	p, err := s.Registry.Primary()
	if err != nil {
		return nil, &StrategyError{Method: MethodPrimary, Err: err}
	}
	m, err := p.GenerateKey(provider.CurveSecp256k1, s.Rand)
	if err != nil {
		return nil, &StrategyError{Method: MethodPrimary, Err: err}
	}
	res, err := fromScalar(m.Scalar, MethodPrimary)
	m.Wipe()
	if err != nil {
		return nil, &StrategyError{Method: MethodPrimary, Err: err}
	}
	return res, nil
}

// PlatformStrategy uses the platform provider. When it lacks secp256k1 the
// strategy falls back to P-256: its order is below the secp256k1 order, so
// the scalar is still valid there and the public key is derived on secp256k1.
type PlatformStrategy struct {
	Provider provider.Provider
	Rand     io.Reader
}

func (*PlatformStrategy) Method() Method { return MethodPlatform }

func (s *PlatformStrategy) Attempt() (*Result, error) {
	curve, method := provider.CurveSecp256k1, MethodPlatform
	if !s.Provider.SupportsCurve(curve) {
		curve, method = provider.CurveP256, MethodPlatformDegraded
		log.Warn("platform provider lacks secp256k1, degrading to ", curve)
	}
	m, err := s.Provider.GenerateKey(curve, s.Rand)
	if err != nil {
		return nil, &StrategyError{Method: method, Err: err}
	}
	res, err := fromScalar(m.Scalar, method)
	m.Wipe()
	if err != nil {
		return nil, &StrategyError{Method: method, Err: err}
	}
	return res, nil
}

// RawEntropyStrategy samples 32 bytes from a CSPRNG, rejecting 0 and values
// at or above the group order.
type RawEntropyStrategy struct {
	Rand io.Reader
}

func (*RawEntropyStrategy) Method() Method { return MethodRawEntropy }

func (s *RawEntropyStrategy) Attempt() (*Result, error) {
	res, err := sampleScalar(s.Rand, MethodRawEntropy)
	if err != nil {
		return nil, &StrategyError{Method: MethodRawEntropy, Err: err}
	}
	return res, nil
}

// HybridEntropyStrategy mixes custodian ciphertext of a time-salted string
// with CSPRNG bytes through HKDF-SHA256 and samples from the result. When the
// local CSPRNG fails it derives from the custodian output alone.
type HybridEntropyStrategy struct {
	Custodian custodian.Custodian
	Alias     string
	Rand      io.Reader
	Now       func() time.Time
}

func (*HybridEntropyStrategy) Method() Method { return MethodHybridEntropy }

func (s *HybridEntropyStrategy) Attempt() (*Result, error) {
	res, err := s.attempt()
	if err != nil {
		return nil, &StrategyError{Method: MethodHybridEntropy, Err: err}
	}
	return res, nil
}

func (s *HybridEntropyStrategy) attempt() (*Result, error) {
	if err := s.Custodian.GenerateKey(s.Alias); err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	defer func() {
		if err := s.Custodian.DeleteKey(s.Alias); err != nil {
			log.Warn("ephemeral entropy key not deleted: ", err)
		}
	}()

	seed := fmt.Sprintf("voterkey-entropy-%d", s.Now().UnixNano())
	ct, iv, err := s.Custodian.Encrypt(s.Alias, []byte(seed))
	if err != nil {
		return nil, fmt.Errorf("custodian entropy: %w", err)
	}
	defer utils.ZeroBytes(ct)

	local := make([]byte, crypto.PrivateKeySize)
	defer utils.ZeroBytes(local)
	if _, err := io.ReadFull(s.Rand, local); err != nil {
		// the custodian's RNG alone keys the ciphertext
		log.Warn("local entropy unavailable, using custodian entropy only: ", err)
		local = local[:0]
	}

	secret := make([]byte, 0, len(ct)+len(local))
	secret = append(append(secret, ct...), local...)
	defer utils.ZeroBytes(secret)

	return sampleScalar(hkdf.New(sha256.New, secret, iv, []byte(hybridInfo)), MethodHybridEntropy)
}

func sampleScalar(r io.Reader, method Method) (*Result, error) {
	buf := make([]byte, crypto.PrivateKeySize)
	defer utils.ZeroBytes(buf)
	for i := 0; i < maxSampleAttempts; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("entropy read: %w", err)
		}
		if !crypto.IsValidScalar(buf) {
			continue
		}
		return fromScalar(append([]byte(nil), buf...), method)
	}
	return nil, ErrEntropyExhausted
}
