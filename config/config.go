package config

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/abcfe/voterkey/common/utils"
	"github.com/naoina/toml"
)

const (
	LevelDebug = "debug"
	LevelProd  = "prod"
)

// Custodian backends
const (
	CustodianSoftware = "software"
	CustodianPKCS11   = "pkcs11"
)

// EnvCustodianPassphrase overrides Custodian.Passphrase when set
const EnvCustodianPassphrase = "VOTERKEY_CUSTODIAN_PASSPHRASE"

// EnvPKCS11Pin overrides Custodian.PKCS11Pin when set
const EnvPKCS11Pin = "VOTERKEY_PKCS11_PIN"

// ErrPassphraseRequired is returned when unsealed software wrapping keys would
// guard envelopes written to a file-backed store.
var ErrPassphraseRequired = errors.New("config: Custodian.Passphrase (or " + EnvCustodianPassphrase + ") is required for the software backend with a file store")

type Common struct {
	Level       string // debug, prod
	ServiceName string
}

type LogInfo struct {
	Path       string
	MaxAgeHour int
	RotateHour int
}

type Store struct {
	Path     string // leveldb directory
	InMemory bool   // keep everything in process memory, nothing survives exit
}

type Custodian struct {
	Backend    string // software, pkcs11
	Passphrase string // seals software wrapping keys at rest; empty keeps them in memory only

	PKCS11Library string
	PKCS11Slot    uint
	PKCS11Pin     string
}

type Wallet struct {
	AliasPrefix string // prefix for the master and encryption wrapping key aliases
	KeyVersion  int
}

type Config struct {
	Common    Common
	LogInfo   LogInfo
	Store     Store
	Custodian Custodian
	Wallet    Wallet
}

func NewConfig(filepath string) (*Config, error) {
	if filepath == "" {
		workDir, _ := os.Getwd()
		rootDir := utils.FindProjectRoot(workDir)
		filepath = path.Join(rootDir, "config", "config.toml")
	}

	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	c := Default()
	if err := toml.NewDecoder(file).Decode(c); err != nil {
		return nil, err
	}
	c.sanitize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a configuration usable without a file
func Default() *Config {
	return &Config{
		Common: Common{
			Level:       LevelProd,
			ServiceName: "voterkey",
		},
		LogInfo: LogInfo{
			Path:       "~/.voterkey/logs/voterkey",
			MaxAgeHour: 24 * 7,
			RotateHour: 24,
		},
		Store: Store{
			Path: "~/.voterkey/store",
		},
		Custodian: Custodian{
			Backend: CustodianSoftware,
		},
		Wallet: Wallet{
			AliasPrefix: "voter_wallet_",
			KeyVersion:  1,
		},
	}
}

func (p *Config) sanitize() {
	p.LogInfo.Path = utils.ExpandHome(p.LogInfo.Path)
	p.Store.Path = utils.ExpandHome(p.Store.Path)
	if v := os.Getenv(EnvCustodianPassphrase); v != "" {
		p.Custodian.Passphrase = v
	}
	if v := os.Getenv(EnvPKCS11Pin); v != "" {
		p.Custodian.PKCS11Pin = v
	}
	if p.Wallet.KeyVersion == 0 {
		p.Wallet.KeyVersion = 1
	}
}

// Validate checks required fields
func (p *Config) Validate() error {
	if p.Store.Path == "" && !p.Store.InMemory {
		return fmt.Errorf("config: Store.Path is required")
	}
	switch p.Custodian.Backend {
	case CustodianSoftware:
		if p.Custodian.Passphrase == "" && !p.Store.InMemory {
			return ErrPassphraseRequired
		}
	case CustodianPKCS11:
		if p.Custodian.PKCS11Library == "" {
			return fmt.Errorf("config: Custodian.PKCS11Library is required for the pkcs11 backend")
		}
	default:
		return fmt.Errorf("config: unknown custodian backend %q", p.Custodian.Backend)
	}
	if p.Wallet.AliasPrefix == "" {
		return fmt.Errorf("config: Wallet.AliasPrefix is required")
	}
	return nil
}
