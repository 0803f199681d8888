package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
)

// Basic authenticates requests against a static map of usernames to
// passwords using HTTP Basic authentication, the scheme most repository
// clients speak out of the box.
type Basic struct {
	users map[string]string
}

// NewBasic creates a Basic engine over the given username/password map.
func NewBasic(users map[string]string) *Basic {
	return &Basic{users: users}
}

// Authenticate checks the Authorization header for valid Basic credentials.
// It returns true if the credentials match a configured user, false
// otherwise. Requests without a Basic Authorization header are declined, not
// errored, so a compound engine can try other schemes.
func (e *Basic) Authenticate(_ context.Context, r *http.Request) (bool, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false, nil
	}

	want, ok := e.users[username]
	if !ok {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(want)) == 1, nil
}
