package auth

// Method identifies how the wallet holder proved presence.
type Method string

const (
	MethodBiometric Method = "biometric"
	MethodPIN       Method = "pin"
	MethodTest      Method = "test"
)

// Failure reasons recorded on auth_failed ledger entries.
const (
	ReasonUnavailable  = "biometric_unavailable"
	ReasonNotEnrolled  = "biometric_not_enrolled"
	ReasonCancelled    = "cancelled"
	ReasonInvalidPIN   = "invalid_pin"
	ReasonLocked       = "locked"
	ReasonPlatformFail = "platform_error"
	ReasonNoMethod     = "no_authenticator_available"
)

// Challenge is what the holder supplies for one authentication attempt.
// An empty Method means the first available authenticator.
type Challenge struct {
	Method Method
	PIN    string
	Prompt string
}

// Result is the outcome of an attempt. A failed attempt is an outcome,
// not an error.
type Result struct {
	Success bool
	Method  Method
	Reason  string
}

func succeeded(m Method) Result {
	return Result{Success: true, Method: m}
}

func failed(m Method, reason string) Result {
	return Result{Method: m, Reason: reason}
}
