package auth

import (
	"context"
	"net/http"
)

// Engine decides whether an HTTP request carries valid credentials.
type Engine interface {

	// Authenticate inspects the given HTTP request for valid credentials.
	// If valid, it returns true; otherwise, it returns false. An error is
	// returned if there was an issue processing the authentication.
	Authenticate(ctx context.Context, r *http.Request) (bool, error)
}
