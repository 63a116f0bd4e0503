//go:build !cgo

package custodian

import "fmt"

func openPKCS11(library string, slot uint, pin string) (Custodian, error) {
	return nil, fmt.Errorf("%w: pkcs11 backend requires cgo", ErrUnavailable)
}
