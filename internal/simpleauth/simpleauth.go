// Package simpleauth authenticates the two fixed identities "app" and
// "admin" against secrets supplied by the operator. This is a developer-only
// configuration and is not recommended for production usage.
package simpleauth

import (
	"time"

	"github.com/go-authgate/credgate/internal/core"
	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/metrics"
	"github.com/go-authgate/credgate/internal/secret"
)

// BackendName identifies this store in logs and metrics.
const BackendName = "simpleauth"

// SecretResolver resolves the current secret of an identity.
type SecretResolver interface {
	Resolve(id secret.Identity) (*secret.Secret, bool)
}

var _ core.CredentialStore = (*Store)(nil)

// Store verifies passwords for the fixed identities.
type Store struct {
	resolver SecretResolver
	log      *logger.Logger
	recorder core.Recorder
}

// NewStore creates a store backed by resolver. log and recorder may be nil.
func NewStore(resolver SecretResolver, log *logger.Logger, recorder core.Recorder) *Store {
	return &Store{
		resolver: resolver,
		log:      log,
		recorder: metrics.OrNoop(recorder),
	}
}

// Name returns provider name for logging
func (s *Store) Name() string {
	return BackendName
}

// ValidUser reports whether username is exactly "app" or "admin".
func (s *Store) ValidUser(username string) bool {
	_, ok := secret.ParseIdentity(username)
	return ok
}

// Authenticate compares password with the identity's whole secret. A known
// identity whose secret cannot be resolved yields InvalidPassword, never
// InvalidUser.
func (s *Store) Authenticate(username, password string) core.Verdict {
	start := time.Now()
	verdict := s.authenticate(username, password)
	s.recorder.RecordAuthAttempt(BackendName, verdict, time.Since(start))
	return verdict
}

func (s *Store) authenticate(username, password string) core.Verdict {
	id, ok := secret.ParseIdentity(username)
	if !ok {
		s.log.Debugf("User does not exist. user=%s", username)
		return core.InvalidUser
	}

	sec, ok := s.resolver.Resolve(id)
	if !ok {
		s.log.Debugf("No secret available. user=%s", username)
		return core.InvalidPassword
	}
	defer sec.Clear()

	if !sec.Equal([]byte(password)) {
		s.log.Debugf("Incorrect password supplied. user=%s", username)
		return core.InvalidPassword
	}
	s.log.Debugf("Correct password supplied. user=%s", username)
	return core.Valid
}
