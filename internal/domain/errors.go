package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input. Never retried.
	ErrValidation = errors.New("bankBin and accountNo are required")

	// ErrTransientLogin is the portal's retryable login condition (GW283).
	ErrTransientLogin = errors.New("transient login failure")

	// ErrSessionExpired is returned when the portal no longer accepts the session (GW200).
	ErrSessionExpired = errors.New("session expired")

	// ErrLoginAttemptsExhausted is returned when the login loop hits its attempt budget.
	ErrLoginAttemptsExhausted = errors.New("login attempts exhausted")
)

// PortalError is a non-success result block returned by the portal.
type PortalError struct {
	Op      string
	Code    string
	Message string
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("%s: portal returned %s: %s", e.Op, e.Code, e.Message)
}

// Is lets callers match portal codes against the sentinel errors.
func (e *PortalError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Code == ResponseCodeSessionExpired
	case ErrTransientLogin:
		return e.Code == ResponseCodeCaptchaInvalid
	}
	return false
}

// NewPortalError builds a PortalError from a result block.
func NewPortalError(op string, result ResultBlock) *PortalError {
	return &PortalError{Op: op, Code: result.ResponseCode, Message: result.Message}
}

// LoginError is a hard authentication failure. It is surfaced to the caller
// as a lookup failure.
type LoginError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authentication failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// LookupError wraps every failure of an account lookup.
type LookupError struct {
	BankBin   string
	AccountNo string
	Err       error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s/%s: %v", e.BankBin, e.AccountNo, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ErrNoSession is returned by operations that need a session when none exists yet.
var ErrNoSession = errors.New("no active session")
