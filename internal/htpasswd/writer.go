package htpasswd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// writeMu serialises rewrites of password files within the process.
var writeMu sync.Mutex

// SetCost changes the bcrypt cost used by SetPassword.
func (s *Store) SetCost(cost int) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return
	}
	s.cost = cost
}

// SetPassword stores a bcrypt hash of password for username. An existing
// entry is replaced in place, otherwise a new line is appended. The file is
// rewritten through a temporary file and renamed over the original.
func (s *Store) SetPassword(username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return ErrEmptyCredentials
	}
	if strings.ContainsAny(username, ": \t\r\n") {
		return ErrInvalidUsername
	}
	if len(username) >= MaxUsernameLength {
		return ErrUsernameTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", username, err)
	}
	entry := username + ":" + string(hash)

	writeMu.Lock()
	defer writeMu.Unlock()

	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read htpasswd file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}
	replaced := false
	for i, line := range lines {
		if user, _, ok := splitLine(line); ok && user == username {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	if err := writeFileAtomic(s.path, []byte(strings.Join(lines, "\n")+"\n")); err != nil {
		return err
	}
	s.log.Infof("Password set for user=%s", username)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".htpasswd-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o660); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace htpasswd file: %w", err)
	}
	return nil
}
