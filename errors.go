package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
)

var (
	// ErrInvalidRequest is returned for malformed or incomplete input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidRole is returned when a role is outside the configured set.
	ErrInvalidRole = errors.New("invalid account role")
	// ErrUnauthorized is returned when no valid identity is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account is, or has just become, locked.
	ErrAccountLocked = errors.New("account locked")
	// ErrPasswordExpired is returned by Login when the password expiry date has passed.
	ErrPasswordExpired = errors.New("password expired")
	// ErrTokenInvalid aliases the token package sentinel.
	ErrTokenInvalid = jwt.ErrTokenInvalid
	// ErrForbidden is returned when the identity lacks a required role.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountNotFound is returned by stores and admin operations for unknown usernames.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when the username is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrEmailExists is returned when the email is already registered to another account.
	ErrEmailExists = errors.New("email already registered")
	// ErrWeakPassword aliases the password package sentinel.
	ErrWeakPassword = password.ErrWeakPassword
	// ErrInvalidCurrentPassword is returned when the supplied current password does not verify.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrPasswordUnchanged is returned when the new password equals the current one.
	ErrPasswordUnchanged = errors.New("new password must be different from current password")
	// ErrPasswordReused is returned when the new password matches an archived hash.
	ErrPasswordReused = errors.New("password was used previously")
	// ErrStoreUnavailable wraps storage faults.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrConcurrentUpdate is returned when a store gives up retrying a contended update.
	ErrConcurrentUpdate = errors.New("concurrent account update")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the caller-facing classification of an error.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindPolicyViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicyViolation:
		return "policy_violation"
	default:
		return "internal_error"
	}
}

// KindOf classifies err. Unknown errors, including store and crypto faults,
// are KindInternal. A nil error is KindInternal as well; callers check nil first.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidRole):
		return KindBadRequest
	case errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidCurrentPassword),
		errors.Is(err, ErrPasswordUnchanged),
		errors.Is(err, ErrPasswordReused),
		errors.Is(err, password.ErrPasswordTooLong):
		return KindPolicyViolation
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrPasswordExpired),
		errors.Is(err, ErrTokenInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrEmailExists):
		return KindConflict
	default:
		return KindInternal
	}
}
