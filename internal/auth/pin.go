package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
	"idwallet/pkg/validation"
)

const (
	defaultMaxAttempts = 5
	defaultLockout     = 15 * time.Minute

	failuresKey = "pin:failures"
	lockedKey   = "pin:locked_until"
)

type pinInput struct {
	PIN string `validate:"required,numeric,min=4,max=12"`
}

// HashPIN returns the bcrypt hash stored for a PIN.
func HashPIN(pin string) (string, error) {
	if err := validation.Validate(pinInput{PIN: pin}); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

// PinFallback verifies a PIN against its bcrypt hash. After maxAttempts
// consecutive failures within the lockout window it refuses every attempt
// until the window passes.
type PinFallback struct {
	hash        []byte
	maxAttempts int
	lockout     time.Duration
	clock       clock.Clock
	attempts    *gocache.Cache
}

type PinOption func(*PinFallback)

// WithLockout sets the failure budget and how long the lockout lasts.
// Non-positive values keep the defaults of 5 attempts and 15 minutes.
func WithLockout(maxAttempts int, lockout time.Duration) PinOption {
	return func(p *PinFallback) {
		if maxAttempts > 0 {
			p.maxAttempts = maxAttempts
		}
		if lockout > 0 {
			p.lockout = lockout
		}
	}
}

func WithPinClock(c clock.Clock) PinOption {
	return func(p *PinFallback) {
		p.clock = c
	}
}

// NewPinFallback builds a PIN authenticator from a bcrypt hash.
func NewPinFallback(hash string, opts ...PinOption) (*PinFallback, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("pin hash is not a bcrypt hash: %w", err)
	}
	p := &PinFallback{
		hash:        []byte(hash),
		maxAttempts: defaultMaxAttempts,
		lockout:     defaultLockout,
		clock:       clock.System(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.attempts = gocache.New(p.lockout, time.Minute)
	return p, nil
}

func (p *PinFallback) Method() Method { return MethodPIN }

// Available is false while the PIN is locked out.
func (p *PinFallback) Available(context.Context) bool {
	_, locked := p.lockedUntil()
	return !locked
}

// Authenticate returns a locked error while locked out; wrong PINs are a
// failed Result.
func (p *PinFallback) Authenticate(ctx context.Context, challenge Challenge) (Result, error) {
	if until, locked := p.lockedUntil(); locked {
		return failed(MethodPIN, ReasonLocked), dErrors.New(dErrors.CodeLocked,
			"too many failed PIN attempts; try again after "+until.Format(time.RFC3339))
	}
	if err := validation.Validate(pinInput{PIN: challenge.PIN}); err != nil {
		p.recordFailure()
		return failed(MethodPIN, ReasonInvalidPIN), nil
	}
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(challenge.PIN))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		p.recordFailure()
		return failed(MethodPIN, ReasonInvalidPIN), nil
	}
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify pin")
	}
	p.attempts.Delete(failuresKey)
	return succeeded(MethodPIN), nil
}

// FailedAttempts returns the consecutive failures in the current window.
func (p *PinFallback) FailedAttempts() int {
	v, ok := p.attempts.Get(failuresKey)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

func (p *PinFallback) recordFailure() {
	if err := p.attempts.Add(failuresKey, 1, p.lockout); err == nil {
		if p.maxAttempts <= 1 {
			p.lock()
		}
		return
	}
	n, err := p.attempts.IncrementInt(failuresKey, 1)
	if err != nil {
		// Entry expired between Add and Increment.
		p.attempts.Set(failuresKey, 1, p.lockout)
		n = 1
	}
	if n >= p.maxAttempts {
		p.lock()
	}
}

func (p *PinFallback) lock() {
	until := p.clock.Now().Add(p.lockout)
	p.attempts.Set(lockedKey, until, p.lockout)
	p.attempts.Delete(failuresKey)
}

// lockedUntil consults the injected clock as well as the cache TTL, so a
// manual clock can end a lockout in tests.
func (p *PinFallback) lockedUntil() (time.Time, bool) {
	v, ok := p.attempts.Get(lockedKey)
	if !ok {
		return time.Time{}, false
	}
	until, ok := v.(time.Time)
	if !ok {
		return time.Time{}, false
	}
	if !p.clock.Now().Before(until) {
		p.attempts.Delete(lockedKey)
		return time.Time{}, false
	}
	return until, true
}

var _ Authenticator = (*PinFallback)(nil)
