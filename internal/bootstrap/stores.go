package bootstrap

import (
	"github.com/go-authgate/credgate/internal/cache"
	"github.com/go-authgate/credgate/internal/config"
	"github.com/go-authgate/credgate/internal/core"
	"github.com/go-authgate/credgate/internal/htpasswd"
	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/metrics"
	"github.com/go-authgate/credgate/internal/secret"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, l *logger.Logger) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		l.Debugf("Prometheus metrics initialized")
	} else {
		l.Debugf("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeHTPasswd validates the password file and builds the store. The
// returned closer is nil unless a cache was set up.
func initializeHTPasswd(
	cfg *config.Config,
	l *logger.Logger,
	recorder core.Recorder,
) (FlatFileStore, func() error) {
	if !htpasswd.ValidateFile(cfg.HTPasswdFile, l) {
		l.Errorf("Password file %s is invalid, htpasswd authentication disabled", cfg.HTPasswdFile)
		return nil, nil
	}

	store := htpasswd.NewStore(cfg.HTPasswdFile, l, recorder)
	store.SetCost(cfg.BcryptCost)

	if cfg.HTPasswdCacheTTL <= 0 {
		l.Debugf("htpasswd cache disabled, file=%s", cfg.HTPasswdFile)
		return store, nil
	}

	cached := htpasswd.NewCachedStore(store, cache.NewMemoryCache[string](), cfg.HTPasswdCacheTTL)
	if cfg.HTPasswdWatch {
		if err := cached.Watch(); err != nil {
			// Without change detection a stale hash could outlive an edit.
			l.Errorf("htpasswd watcher unavailable, cache disabled: %v", err)
			_ = cached.Close()
			return store, nil
		}
	}
	l.Debugf("htpasswd cache enabled, file=%s ttl=%s watch=%t",
		cfg.HTPasswdFile, cfg.HTPasswdCacheTTL, cfg.HTPasswdWatch)
	return cached, cached.Close
}

func secretSources(cfg *config.Config) map[secret.Identity]secret.Source {
	return map[secret.Identity]secret.Source{
		secret.App:   {File: cfg.AppSecretFile, EnvVar: cfg.AppPasswordEnv},
		secret.Admin: {File: cfg.AdminSecretFile, EnvVar: cfg.AdminPasswordEnv},
	}
}

// simpleAuthEnabled reports whether any identity has a secret file or
// environment variable at startup.
func simpleAuthEnabled(r *secret.Resolver) bool {
	for _, id := range secret.Identities {
		if r.Configured(id) {
			return true
		}
	}
	return false
}
