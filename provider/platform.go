package provider

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"io"
)

const PlatformName = "platform"

// PlatformProvider is backed by crypto/ecdsa and only knows the NIST curves.
type PlatformProvider struct {
	curves map[string]elliptic.Curve
}

func NewPlatformProvider() *PlatformProvider {
	return &PlatformProvider{curves: map[string]elliptic.Curve{
		CurveP256: elliptic.P256(),
		CurveP384: elliptic.P384(),
		CurveP521: elliptic.P521(),
	}}
}

func (*PlatformProvider) Name() string { return PlatformName }

func (p *PlatformProvider) SupportsCurve(curve string) bool {
	_, ok := p.curves[curve]
	return ok
}

func (p *PlatformProvider) GenerateKey(curve string, rand io.Reader) (*KeyMaterial, error) {
	c, ok := p.curves[curve]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}
	priv, err := ecdsa.GenerateKey(c, rand)
	if err != nil {
		return nil, err
	}
	size := (c.Params().BitSize + 7) / 8
	scalar := priv.D.FillBytes(make([]byte, size))
	priv.D.SetInt64(0)
	return &KeyMaterial{Curve: curve, Scalar: scalar}, nil
}
