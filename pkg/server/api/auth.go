package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized indicates a missing or wrong admin credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates that configuration changes are disabled on this server.
	ErrForbidden = errors.New("configuration updates are disabled")
)

// Authorizer decides whether a request may change record configuration.
// Reads and resolutions are open.
type Authorizer interface {
	Authorize(r *http.Request) error
}

// TokenAuthorizer accepts requests carrying "Authorization: Bearer <token>".
type TokenAuthorizer struct {
	token string
}

// NewTokenAuthorizer returns DenyAll when token is empty.
func NewTokenAuthorizer(token string) Authorizer {
	if token == "" {
		return DenyAll{}
	}
	return TokenAuthorizer{token: token}
}

// Authorize implements Authorizer.
func (a TokenAuthorizer) Authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// DenyAll rejects every configuration change.
type DenyAll struct{}

// Authorize implements Authorizer.
func (DenyAll) Authorize(*http.Request) error {
	return ErrForbidden
}
