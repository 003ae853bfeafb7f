package htpasswd

import "errors"

var (
	ErrEmptyCredentials = errors.New("htpasswd: username or password is empty")
	ErrUsernameTooLong  = errors.New("htpasswd: username must be shorter than 12 characters")
	ErrInvalidUsername  = errors.New("htpasswd: username must not contain ':' or whitespace")
	ErrUserNotFound     = errors.New("htpasswd: user not found")
)
