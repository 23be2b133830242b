package authkit

import "time"

// ServerConfig carries the immutable settings the auth routes need. It is
// built once at startup and passed explicitly; no component reads the
// environment on its own.
type ServerConfig struct {
	Issuer            string
	AccessSecret      []byte
	RefreshSecret     []byte
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	RefreshCookieName string
	CookieDomain      string
}
