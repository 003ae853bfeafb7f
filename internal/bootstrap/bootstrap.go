package bootstrap

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-authgate/credgate/internal/config"
	"github.com/go-authgate/credgate/internal/core"
	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/secret"
	"github.com/go-authgate/credgate/internal/simpleauth"
)

// FlatFileStore is the htpasswd backend, with or without a hash cache.
type FlatFileStore interface {
	core.CredentialStore
	FindHash(username string) (string, bool)
	SetPassword(username, password string) error
	Validate() bool
}

// Engine holds all initialized components
type Engine struct {
	Config *config.Config

	// Core infrastructure
	Logger  *logger.Logger
	Metrics core.Recorder

	// Credential stores. HTPasswd is nil when the password file failed
	// validation at startup, SimpleAuth when no identity had a secret source.
	HTPasswd   FlatFileStore
	Secrets    *secret.Resolver
	SimpleAuth *simpleauth.Store

	closers []func() error
}

// New validates cfg and initializes every component from it. Only an invalid
// configuration is an error: a logger that cannot be opened leaves the engine
// running without a log file, and an invalid password file disables the
// htpasswd backend.
func New(cfg *config.Config) (*Engine, error) {
	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{Config: cfg}

	// Phase 2: Logging and metrics
	e.Logger = initializeLogger(cfg)
	e.closers = append(e.closers, e.Logger.Close)
	e.Metrics = initializeMetrics(cfg, e.Logger)

	// Phase 3: Flat-file store
	var closer func() error
	e.HTPasswd, closer = initializeHTPasswd(cfg, e.Logger, e.Metrics)
	if closer != nil {
		// stop the watcher before the logger it writes to
		e.closers = append([]func() error{closer}, e.closers...)
	}

	// Phase 4: Static identities
	e.Secrets = secret.NewResolver(secretSources(cfg), e.Logger, e.Metrics)
	if simpleAuthEnabled(e.Secrets) {
		e.SimpleAuth = simpleauth.NewStore(e.Secrets, e.Logger, e.Metrics)
	} else {
		e.Logger.Infof("No secrets found for app or admin, simpleauth disabled")
	}

	return e, nil
}

// Stores returns the enabled credential stores in lookup order.
func (e *Engine) Stores() []core.CredentialStore {
	stores := make([]core.CredentialStore, 0, 2)
	if e.HTPasswd != nil {
		stores = append(stores, e.HTPasswd)
	}
	if e.SimpleAuth != nil {
		stores = append(stores, e.SimpleAuth)
	}
	return stores
}

// Close stops the file watcher, if any, and closes the log file.
func (e *Engine) Close() error {
	closers := e.closers
	e.closers = nil

	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func initializeLogger(cfg *config.Config) *logger.Logger {
	l := logger.New()
	l.SetDebugEnv(cfg.DebugEnv)

	var err error
	if cfg.LogReset {
		err = l.InitReset(cfg.LogFile)
	} else {
		err = l.Init(cfg.LogFile)
	}
	if err != nil {
		log.Printf("Failed to open log file %s: %v (continuing without logging)", cfg.LogFile, err)
	}
	return l
}
