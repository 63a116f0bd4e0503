//go:build cgo

package custodian

import (
	"fmt"
	"sync"

	log "github.com/abcfe/voterkey/common/logger"
	"github.com/miekg/pkcs11"
)

const gcmTagBits = 128

// PKCS11 keeps wrapping keys on an HSM token as sensitive, non-extractable
// CKK_AES objects labelled by alias.
type PKCS11 struct {
	mu      sync.Mutex
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle
	slot    uint
}

func openPKCS11(library string, slot uint, pin string) (Custodian, error) {
	p, err := NewPKCS11(library, slot, pin)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func NewPKCS11(library string, slot uint, pin string) (*PKCS11, error) {
	if library == "" {
		return nil, fmt.Errorf("%w: empty pkcs11 library path", ErrUnavailable)
	}
	ctx := pkcs11.New(library)
	if ctx == nil {
		return nil, fmt.Errorf("%w: cannot load %s", ErrUnavailable, library)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("%w: initialize: %v", ErrUnavailable, err)
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		ctx.Finalize()
		ctx.Destroy()
		return nil, fmt.Errorf("%w: slot list: %v", ErrUnavailable, err)
	}
	found := false
	for _, s := range slots {
		if s == slot {
			found = true
			break
		}
	}
	if !found {
		ctx.Finalize()
		ctx.Destroy()
		return nil, fmt.Errorf("%w: slot %d has no token", ErrUnavailable, slot)
	}

	session, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		ctx.Finalize()
		ctx.Destroy()
		return nil, fmt.Errorf("%w: open session: %v", ErrUnavailable, err)
	}
	if pin != "" {
		if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
			ctx.CloseSession(session)
			ctx.Finalize()
			ctx.Destroy()
			return nil, fmt.Errorf("%w: login: %v", ErrUnavailable, err)
		}
	}

	log.Info("pkcs11 custodian ready, library: ", library, ", slot: ", slot)
	return &PKCS11{ctx: ctx, session: session, slot: slot}, nil
}

func (p *PKCS11) GenerateKey(alias string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok, err := p.find(alias); err != nil {
		return err
	} else if ok {
		if err := p.ctx.DestroyObject(p.session, h); err != nil {
			return fmt.Errorf("custodian: replace %s: %w", alias, err)
		}
	}

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_AES),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE_LEN, KeySize),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_KEY_GEN, nil)}
	if _, err := p.ctx.GenerateKey(p.session, mech, template); err != nil {
		return fmt.Errorf("custodian: generate %s: %w", alias, err)
	}
	log.Debug("pkcs11 key generated: ", alias)
	return nil
}

func (p *PKCS11) Encrypt(alias string, plaintext []byte) ([]byte, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.mustFind(alias)
	if err != nil {
		return nil, nil, err
	}
	iv, err := p.ctx.GenerateRandom(p.session, IVSize)
	if err != nil {
		return nil, nil, fmt.Errorf("custodian: iv: %w", err)
	}

	params := pkcs11.NewGCMParams(iv, nil, gcmTagBits)
	defer params.Free()
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_GCM, params)}
	if err := p.ctx.EncryptInit(p.session, mech, h); err != nil {
		return nil, nil, fmt.Errorf("custodian: encrypt init: %w", err)
	}
	ct, err := p.ctx.Encrypt(p.session, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("custodian: encrypt: %w", err)
	}
	return ct, iv, nil
}

func (p *PKCS11) Decrypt(alias string, ciphertext, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidIV
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.mustFind(alias)
	if err != nil {
		return nil, err
	}
	params := pkcs11.NewGCMParams(iv, nil, gcmTagBits)
	defer params.Free()
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_GCM, params)}
	if err := p.ctx.DecryptInit(p.session, mech, h); err != nil {
		return nil, fmt.Errorf("custodian: decrypt init: %w", err)
	}
	pt, err := p.ctx.Decrypt(p.session, ciphertext)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

func (p *PKCS11) DeleteKey(alias string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok, err := p.find(alias)
	if err != nil || !ok {
		return err
	}
	if err := p.ctx.DestroyObject(p.session, h); err != nil {
		return fmt.Errorf("custodian: delete %s: %w", alias, err)
	}
	return nil
}

func (p *PKCS11) HasKey(alias string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok, err := p.find(alias)
	return ok, err
}

func (p *PKCS11) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	p.ctx.Logout(p.session)
	p.ctx.CloseSession(p.session)
	p.ctx.Finalize()
	p.ctx.Destroy()
	p.ctx = nil
	return nil
}

func (p *PKCS11) mustFind(alias string) (pkcs11.ObjectHandle, error) {
	h, ok, err := p.find(alias)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
	}
	return h, nil
}

func (p *PKCS11) find(alias string) (pkcs11.ObjectHandle, bool, error) {
	if p.ctx == nil {
		return 0, false, ErrUnavailable
	}
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
	}
	if err := p.ctx.FindObjectsInit(p.session, template); err != nil {
		return 0, false, fmt.Errorf("custodian: find %s: %w", alias, err)
	}
	defer p.ctx.FindObjectsFinal(p.session)

	handles, _, err := p.ctx.FindObjects(p.session, 1)
	if err != nil {
		return 0, false, fmt.Errorf("custodian: find %s: %w", alias, err)
	}
	if len(handles) == 0 {
		return 0, false, nil
	}
	return handles[0], true, nil
}
