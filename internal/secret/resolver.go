// Package secret resolves the passwords of the fixed "app" and "admin"
// identities from a secret file, falling back to a deprecated environment
// variable.
package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-authgate/credgate/internal/core"
	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/metrics"
)

// MaxPasswordLength is the longest secret kept; extra bytes are dropped.
const MaxPasswordLength = 256

// Identity is one of the two fixed principals.
type Identity string

const (
	App   Identity = "app"
	Admin Identity = "admin"
)

// Identities lists every known identity.
var Identities = []Identity{App, Admin}

// ParseIdentity maps a username to an Identity with an exact,
// case-sensitive comparison.
func ParseIdentity(username string) (Identity, bool) {
	switch Identity(username) {
	case App:
		return App, true
	case Admin:
		return Admin, true
	default:
		return "", false
	}
}

// Default secret locations.
const (
	// #nosec G101 -- path, not a credential
	DefaultAppSecretFile = "/run/secrets/mqAppPassword"
	// #nosec G101 -- path, not a credential
	DefaultAdminSecretFile = "/run/secrets/mqAdminPassword"
	DefaultAppPasswordEnv   = "MQ_APP_PASSWORD"
	DefaultAdminPasswordEnv = "MQ_ADMIN_PASSWORD"
)

// Resolution sources reported to the metrics recorder.
const (
	SourceFile = "file"
	SourceEnv  = "env"
	SourceNone = "none"
)

// Source is where one identity's secret is read from. File takes
// precedence over EnvVar. Either may be empty to disable it.
type Source struct {
	File   string
	EnvVar string
}

// DefaultSources returns the standard secret locations.
func DefaultSources() map[Identity]Source {
	return map[Identity]Source{
		App:   {File: DefaultAppSecretFile, EnvVar: DefaultAppPasswordEnv},
		Admin: {File: DefaultAdminSecretFile, EnvVar: DefaultAdminPasswordEnv},
	}
}

// Resolver looks up identity secrets. Sources are read on every call and
// never cached.
type Resolver struct {
	sources   map[Identity]Source
	log       *logger.Logger
	recorder  core.Recorder
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver for sources. log and recorder may be nil.
func NewResolver(sources map[Identity]Source, log *logger.Logger, recorder core.Recorder) *Resolver {
	copied := make(map[Identity]Source, len(sources))
	for id, src := range sources {
		copied[id] = src
	}
	return &Resolver{
		sources:   copied,
		log:       log,
		recorder:  metrics.OrNoop(recorder),
		lookupEnv: os.LookupEnv,
	}
}

// Resolve returns the current secret for id. The caller owns the result and
// must Clear it after use.
func (r *Resolver) Resolve(id Identity) (*Secret, bool) {
	src, ok := r.sources[id]
	if !ok {
		return nil, false
	}

	if src.File != "" {
		s, err := readSecretFile(src.File)
		if err == nil {
			r.recorder.RecordSecretSource(string(id), SourceFile)
			return s, true
		}
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Debugf("Unable to read secret file '%s' for user=%s: %v", src.File, id, err)
		}
	}

	if src.EnvVar != "" {
		if value, set := r.lookupEnv(src.EnvVar); set && value != "" {
			r.log.Infof("Environment variable %s is deprecated, use secrets to set the passwords", src.EnvVar)
			r.recorder.RecordSecretSource(string(id), SourceEnv)
			return newSecret(truncate([]byte(value))), true
		}
	}

	r.recorder.RecordSecretSource(string(id), SourceNone)
	return nil, false
}

// Configured reports whether id has a secret file present or a non-blank
// environment variable, without reading the secret itself.
func (r *Resolver) Configured(id Identity) bool {
	src, ok := r.sources[id]
	if !ok {
		return false
	}
	if src.File != "" {
		if info, err := os.Stat(src.File); err == nil && info.Mode().IsRegular() {
			return true
		}
	}
	if src.EnvVar != "" {
		if value, set := r.lookupEnv(src.EnvVar); set && strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

var errEmptySecret = errors.New("secret file is empty")

// readSecretFile returns the first line of path without its line ending,
// truncated to MaxPasswordLength. Only MaxPasswordLength+2 bytes are read so
// a trailing CR/LF after a maximum-length secret is still recognised.
func readSecretFile(path string) (*Secret, error) {
	// #nosec G304 -- path comes from operator configuration
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, MaxPasswordLength+2)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		wipe(buf)
		return nil, fmt.Errorf("read secret file: %w", err)
	}

	line := buf[:n]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, "\r\n")
	line = truncate(line)
	if len(line) == 0 {
		wipe(buf)
		return nil, errEmptySecret
	}

	out := make([]byte, len(line))
	copy(out, line)
	wipe(buf)
	return newSecret(out), nil
}

func truncate(b []byte) []byte {
	if len(b) > MaxPasswordLength {
		wipe(b[MaxPasswordLength:])
		return b[:MaxPasswordLength]
	}
	return b
}
