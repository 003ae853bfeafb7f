package core

// Verdict is the tri-state outcome of an authentication attempt.
// The numeric values match the return codes of the queue manager plugins.
type Verdict int

const (
	// Valid means the identity is known and the password matched.
	Valid Verdict = iota
	// InvalidUser means the identity is not known to the store.
	InvalidUser
	// InvalidPassword means the identity is known but the password did not
	// match, or its secret could not be resolved.
	InvalidPassword
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case InvalidUser:
		return "invalid_user"
	case InvalidPassword:
		return "invalid_password"
	default:
		return "unknown"
	}
}

// CredentialStore is the interface that password-based verification
// backends must implement.
type CredentialStore interface {
	// Authenticate checks the supplied password for username.
	Authenticate(username, password string) Verdict
	// ValidUser reports whether username is known to the store.
	ValidUser(username string) bool
	// Name returns the backend name for logging and metrics.
	Name() string
}
