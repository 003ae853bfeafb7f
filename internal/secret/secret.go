package secret

import "crypto/subtle"

// Secret owns a plaintext credential buffer. Call Clear as soon as the
// value is no longer needed; Clear is safe to call more than once and on a
// nil Secret.
type Secret struct {
	buf []byte
}

// newSecret takes ownership of buf.
func newSecret(buf []byte) *Secret {
	return &Secret{buf: buf}
}

// Bytes returns the underlying buffer. It is zeroed by Clear.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Len returns the secret length in bytes.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// Equal reports whether candidate matches the whole secret. A candidate
// that is a prefix or an extension of the secret does not match.
func (s *Secret) Equal(candidate []byte) bool {
	if s == nil || len(s.buf) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(s.buf, candidate) == 1
}

// Clear overwrites the secret with zeroes and releases it.
func (s *Secret) Clear() {
	if s == nil {
		return
	}
	wipe(s.buf)
	s.buf = nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
