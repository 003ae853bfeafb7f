// Package htpasswd verifies credentials against a colon-delimited
// username:hash file. This is a developer-only configuration and is not
// recommended for production usage.
package htpasswd

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-authgate/credgate/internal/core"
	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/metrics"

	"golang.org/x/crypto/bcrypt"
)

// MaxUsernameLength is the exclusive upper bound on username length imposed
// by the queue manager.
const MaxUsernameLength = 12

// BackendName identifies this store in logs and metrics.
const BackendName = "htpasswd"

var _ core.CredentialStore = (*Store)(nil)

// Store looks up users in a password file. The file is re-read on every
// call, so edits take effect immediately.
type Store struct {
	path     string
	log      *logger.Logger
	recorder core.Recorder
	cost     int
}

// NewStore creates a store for the file at path. log and recorder may be nil.
func NewStore(path string, log *logger.Logger, recorder core.Recorder) *Store {
	return &Store{
		path:     path,
		log:      log,
		recorder: metrics.OrNoop(recorder),
		cost:     bcrypt.DefaultCost,
	}
}

// Name returns provider name for logging
func (s *Store) Name() string {
	return BackendName
}

// splitLine returns the username and hash fields of one line. ok is false
// for blank lines and lines without a ':' separator.
func splitLine(line string) (user, hash string, ok bool) {
	user, rest, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	// Fields after the hash are ignored.
	rest, _, _ = strings.Cut(rest, ":")
	rest = strings.TrimLeft(rest, " \t")
	if i := strings.IndexAny(rest, " \t\r\n"); i >= 0 {
		rest = rest[:i]
	}
	return user, rest, true
}

// ValidateFile reports whether every username in the file is shorter than
// MaxUsernameLength. A file that cannot be opened is invalid.
func ValidateFile(path string, log *logger.Logger) bool {
	// #nosec G304 -- path comes from operator configuration
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		log.Errorf("Error opening htpasswd file '%s': %v", path, err)
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		user, _, ok := splitLine(sc.Text())
		if !ok {
			continue
		}
		if len(user) >= MaxUsernameLength {
			log.Errorf(
				"Invalid htpasswd file for use with IBM MQ.  User '%s' is longer than twelve characters",
				user,
			)
			return false
		}
	}
	if err := sc.Err(); err != nil {
		log.Errorf("Error reading htpasswd file '%s': %v", path, err)
		return false
	}
	return true
}

// Validate runs ValidateFile on the store's file.
func (s *Store) Validate() bool {
	return ValidateFile(s.path, s.log)
}

// FindHash returns the hash for the first line whose username equals
// username exactly.
func (s *Store) FindHash(username string) (string, bool) {
	// #nosec G304 -- path comes from operator configuration
	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		s.log.Errorf("Error opening htpasswd file '%s': %v", s.path, err)
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		user, hash, ok := splitLine(sc.Text())
		if !ok || hash == "" {
			continue
		}
		if user == username {
			return hash, true
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Errorf("Error reading htpasswd file '%s': %v", s.path, err)
	}
	return "", false
}

// Authenticate verifies password against the stored hash for username.
func (s *Store) Authenticate(username, password string) core.Verdict {
	start := time.Now()
	verdict := s.authenticate(username, password)
	s.recorder.RecordAuthAttempt(BackendName, verdict, time.Since(start))
	return verdict
}

func (s *Store) authenticate(username, password string) core.Verdict {
	hash, found := s.FindHash(username)
	return verify(s.log, username, password, hash, found)
}

// verify is shared with CachedStore.
func verify(log *logger.Logger, username, password, hash string, found bool) core.Verdict {
	if !found {
		log.Debugf("User does not exist. user=%s", username)
		return core.InvalidUser
	}
	// Only bcrypt hashes are supported; any other scheme fails comparison.
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		log.Debugf("Incorrect password supplied. user=%s", username)
		return core.InvalidPassword
	}
	log.Debugf("Correct password supplied. user=%s", username)
	return core.Valid
}

// ValidUser reports whether username has an entry in the file.
func (s *Store) ValidUser(username string) bool {
	_, found := s.FindHash(username)
	return found
}
