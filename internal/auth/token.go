package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Token authenticates requests carrying a bearer token from a static set of
// accepted tokens.
type Token struct {
	tokens []string
}

// NewToken creates a Token engine accepting the given tokens.
func NewToken(tokens []string) *Token {
	return &Token{tokens: tokens}
}

// Authenticate checks the Authorization header for an accepted bearer token.
// Requests without a Bearer Authorization header are declined, not errored.
func (e *Token) Authenticate(_ context.Context, r *http.Request) (bool, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return false, nil
	}

	presented := strings.TrimSpace(header[len(bearerPrefix):])
	for _, token := range e.tokens {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
