package provider

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(func() (Provider, error) {
		calls.Add(1)
		return NewBtcecProvider(), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, r.Initialize())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	p, ok := r.Lookup(BtcecName)
	require.True(t, ok)
	assert.True(t, p.SupportsCurve(CurveSecp256k1))
	assert.Equal(t, []string{BtcecName}, r.Providers())
}

func TestInitializeFailures(t *testing.T) {
	r := NewRegistry(func() (Provider, error) { return nil, errors.New("no native library") })
	assert.False(t, r.Initialize())
	_, err := r.Primary()
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	r = NewRegistry(func() (Provider, error) { panic("boom") })
	assert.False(t, r.Initialize())

	r = NewRegistry(nil)
	assert.False(t, r.Initialize())
}

func TestInitializeRetriesAfterFailure(t *testing.T) {
	fail := true
	r := NewRegistry(func() (Provider, error) {
		if fail {
			return nil, errors.New("not yet")
		}
		return NewBtcecProvider(), nil
	})
	assert.False(t, r.Initialize())
	fail = false
	assert.True(t, r.Initialize())
}

func TestRegisterSecondary(t *testing.T) {
	r := NewRegistry(func() (Provider, error) { return NewBtcecProvider(), nil })
	require.NoError(t, r.Register(NewPlatformProvider()))
	require.True(t, r.Initialize())
	assert.Equal(t, []string{BtcecName, PlatformName}, r.Providers())
	assert.Error(t, r.Register(nil))
}

func TestBtcecProviderGenerate(t *testing.T) {
	p := NewBtcecProvider()
	m, err := p.GenerateKey(CurveSecp256k1, rand.Reader)
	require.NoError(t, err)
	assert.Len(t, m.Scalar, 32)
	m.Wipe()
	assert.Nil(t, m.Scalar)

	_, err = p.GenerateKey(CurveP256, rand.Reader)
	assert.ErrorIs(t, err, ErrUnsupportedCurve)
}

func TestBtcecProviderPropagatesReaderFailure(t *testing.T) {
	_, err := NewBtcecProvider().GenerateKey(CurveSecp256k1, errReader{})
	assert.Error(t, err)
}

func TestPlatformProviderCurves(t *testing.T) {
	p := NewPlatformProvider()
	assert.False(t, p.SupportsCurve(CurveSecp256k1))
	assert.True(t, p.SupportsCurve(CurveP256))

	_, err := p.GenerateKey(CurveSecp256k1, rand.Reader)
	assert.ErrorIs(t, err, ErrUnsupportedCurve)

	m, err := p.GenerateKey(CurveP256, rand.Reader)
	require.NoError(t, err)
	assert.Equal(t, CurveP256, m.Curve)
	assert.Len(t, m.Scalar, 32)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
