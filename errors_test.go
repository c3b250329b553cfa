package goGuard

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/goGuard/password"
	"github.com/samber/oops"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrInvalidRequest, KindBadRequest},
		{fmt.Errorf("%w: email is required", ErrInvalidRequest), KindBadRequest},
		{ErrInvalidRole, KindBadRequest},
		{ErrInvalidCredentials, KindUnauthorized},
		{ErrAccountLocked, KindUnauthorized},
		{ErrPasswordExpired, KindUnauthorized},
		{ErrTokenInvalid, KindUnauthorized},
		{ErrForbidden, KindForbidden},
		{ErrAccountNotFound, KindNotFound},
		{oops.Code("not_found").Wrap(ErrAccountNotFound), KindNotFound},
		{ErrAccountExists, KindConflict},
		{ErrEmailExists, KindConflict},
		{fmt.Errorf("%w: requires a digit", password.ErrWeakPassword), KindPolicyViolation},
		{ErrPasswordReused, KindPolicyViolation},
		{ErrPasswordUnchanged, KindPolicyViolation},
		{ErrInvalidCurrentPassword, KindPolicyViolation},
		{password.ErrPasswordTooLong, KindPolicyViolation},
		{fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.New("dial tcp")), KindInternal},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if KindPolicyViolation.String() != "policy_violation" || KindInternal.String() != "internal_error" {
		t.Fatal("unexpected kind names")
	}
}
