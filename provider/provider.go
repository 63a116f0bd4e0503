// Package provider keeps the registry of cryptographic providers able to
// produce raw elliptic-curve key material.
package provider

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/abcfe/voterkey/common/utils"
)

const (
	CurveSecp256k1 = "secp256k1"
	CurveP256      = "P-256"
	CurveP384      = "P-384"
	CurveP521      = "P-521"
)

var (
	ErrProviderUnavailable = errors.New("provider: unavailable")
	ErrUnsupportedCurve    = errors.New("provider: unsupported curve")
)

// KeyMaterial is a raw private scalar, big-endian, as produced by a provider.
type KeyMaterial struct {
	Curve  string
	Scalar []byte
}

func (m *KeyMaterial) Wipe() {
	if m == nil {
		return
	}
	utils.ZeroBytes(m.Scalar)
	m.Scalar = nil
}

type Provider interface {
	Name() string
	SupportsCurve(curve string) bool
	GenerateKey(curve string, rand io.Reader) (*KeyMaterial, error)
}

// Factory builds the primary provider on first Initialize.
type Factory func() (Provider, error)

type Registry struct {
	initialized atomic.Bool

	mu        sync.RWMutex
	factory   Factory
	providers map[string]Provider
	primary   string
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:   factory,
		providers: make(map[string]Provider),
	}
}

// Default is the process-wide registry with the btcec provider as primary.
var Default = NewRegistry(func() (Provider, error) { return NewBtcecProvider(), nil })

// Initialize builds and registers the primary provider, then looks it up
// again to confirm registration. Safe to call any number of times from any
// goroutine; only the first successful call does work.
func (r *Registry) Initialize() (ok bool) {
	if r.initialized.Load() {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized.Load() {
		return true
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("provider factory panicked: ", rec)
			ok = false
		}
	}()

	if r.factory == nil {
		log.Warn("provider registry has no factory")
		return false
	}
	p, err := r.factory()
	if err != nil || p == nil {
		log.Warn("primary provider unavailable: ", err)
		return false
	}
	r.providers[p.Name()] = p

	if got, found := r.providers[p.Name()]; !found || got != p {
		log.Warn("primary provider registration could not be verified: ", p.Name())
		return false
	}
	r.primary = p.Name()
	r.initialized.Store(true)
	log.Debug("primary provider registered: ", p.Name())
	return true
}

// Register adds a secondary provider.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", ErrProviderUnavailable)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	return nil
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary initializes the registry if needed and returns the primary provider.
func (r *Registry) Primary() (Provider, error) {
	if !r.Initialize() {
		return nil, ErrProviderUnavailable
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, ErrProviderUnavailable
	}
	return p, nil
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
