package provider

import (
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const BtcecName = "btcec"

// BtcecProvider generates secp256k1 keys with the btcec/dcrd implementation.
type BtcecProvider struct{}

func NewBtcecProvider() *BtcecProvider { return &BtcecProvider{} }

func (*BtcecProvider) Name() string { return BtcecName }

func (*BtcecProvider) SupportsCurve(curve string) bool { return curve == CurveSecp256k1 }

func (p *BtcecProvider) GenerateKey(curve string, rand io.Reader) (*KeyMaterial, error) {
	if !p.SupportsCurve(curve) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}
	priv, err := secp256k1.GeneratePrivateKeyFromRand(rand)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	return &KeyMaterial{Curve: curve, Scalar: priv.Serialize()}, nil
}
