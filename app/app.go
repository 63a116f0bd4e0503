package app

import (
	"fmt"
	"io"
	"os"

	"github.com/abcfe/voterkey/common/logger"
	conf "github.com/abcfe/voterkey/config"
	"github.com/abcfe/voterkey/custodian"
	"github.com/abcfe/voterkey/provider"
	"github.com/abcfe/voterkey/storage"
	"github.com/abcfe/voterkey/wallet"
)

type App struct {
	Conf      conf.Config
	DB        *storage.DB
	Custodian custodian.Custodian
	Wallet    *wallet.KeyManager
}

func New(configPath string, debug bool) (*App, error) {
	cfg, err := conf.NewConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config: ", err)
		return nil, err
	}
	if debug {
		cfg.Common.Level = conf.LevelDebug
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *conf.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid config: ", err)
		return nil, err
	}
	if err := logger.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, err
	}

	db, err := storage.InitDB(cfg)
	if err != nil {
		logger.Error("Failed to load db: ", err)
		return nil, err
	}

	if !provider.Default.Initialize() {
		// the generator falls back to the platform and entropy strategies
		logger.Warn("primary key provider unavailable")
	}
	if _, ok := provider.Default.Lookup(provider.PlatformName); !ok {
		if err := provider.Default.Register(provider.NewPlatformProvider()); err != nil {
			logger.Warn("platform provider not registered: ", err)
		}
	}

	cust, err := custodian.New(cfg, db)
	if err != nil {
		logger.Error("Failed to initialize custodian: ", err)
		db.Close()
		return nil, err
	}
	if cfg.Store.InMemory {
		logger.Warn("in-memory store, the wallet will not survive exit")
	}

	app := &App{
		Conf:      *cfg,
		DB:        db,
		Custodian: cust,
		Wallet:    wallet.NewKeyManager(cfg.Wallet, nil, db, cust, nil),
	}
	logger.Info("voterkey initialized, custodian: ", cfg.Custodian.Backend, ", store: ", cfg.Store.Path)
	return app, nil
}

func (p *App) Terminate() {
	if c, ok := p.Custodian.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close custodian: ", err)
		}
	}
	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			logger.Error("Failed to close db: ", err)
		}
	}
	logger.Sync()
}
