// Package auth proves the wallet holder is present before sensitive
// actions. Authenticators are interchangeable: production selects the
// platform biometric with a PIN fallback, tests use AlwaysSucceed.
package auth

import "context"

// Authenticator is one way of proving holder presence.
type Authenticator interface {
	Method() Method
	// Available reports whether the authenticator can be used right now.
	Available(ctx context.Context) bool
	Authenticate(ctx context.Context, challenge Challenge) (Result, error)
}

// AlwaysSucceed is a test double that accepts every attempt.
type AlwaysSucceed struct{}

func (AlwaysSucceed) Method() Method { return MethodTest }

func (AlwaysSucceed) Available(context.Context) bool { return true }

func (AlwaysSucceed) Authenticate(context.Context, Challenge) (Result, error) {
	return succeeded(MethodTest), nil
}

var _ Authenticator = AlwaysSucceed{}
