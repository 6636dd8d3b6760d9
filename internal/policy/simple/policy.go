// Package simple contains the permissive fetch policy used when per-host
// rate limiting is switched off.
package simple

import "context"

// Limiter admits every request immediately.
type Limiter struct{}

// New creates a Limiter.
func New() *Limiter {
	return &Limiter{}
}

// Wait returns at once, or the context error if ctx is already done.
func (Limiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
