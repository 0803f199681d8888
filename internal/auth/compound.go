package auth

import (
	"context"
	"net/http"
)

// Compound tries a sequence of engines in order; the first one to accept the
// request wins.
type Compound struct {
	engines []Engine
}

// NewCompound creates a Compound engine over the given engines.
func NewCompound(engines ...Engine) *Compound {
	return &Compound{engines: engines}
}

// Authenticate asks each engine in turn. Engine errors are swallowed so one
// misbehaving scheme cannot lock out the others.
func (e *Compound) Authenticate(ctx context.Context, r *http.Request) (bool, error) {
	for _, engine := range e.engines {
		if ok, err := engine.Authenticate(ctx, r); ok && err == nil {
			return true, nil
		}
	}
	return false, nil
}
