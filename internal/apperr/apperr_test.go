package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinelOfItsKind(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{Validation("bad %s", "field"), ErrValidation},
		{Conflict("email is already in use"), ErrConflict},
		{Authentication(errors.New("expired")), ErrAuthentication},
		{NotFound("task not found"), ErrNotFound},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("outer: %w", tt.err)
		if !errors.Is(wrapped, tt.want) {
			t.Fatalf("%v should match %v", wrapped, tt.want)
		}
		if errors.Is(wrapped, errors.New("other")) {
			t.Fatalf("%v should not match an unrelated error", wrapped)
		}
	}

	if errors.Is(NotFound("x"), ErrValidation) {
		t.Fatalf("not found must not match validation")
	}
}

func TestAuthenticationHidesCause(t *testing.T) {
	cause := errors.New("token signature is invalid")
	err := Authentication(cause)

	if MessageOf(err) != "please authenticate" {
		t.Fatalf("unexpected client message %q", MessageOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should stay reachable for logging")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("boom")) != "" {
		t.Fatalf("unclassified errors have no kind")
	}
	if KindOf(fmt.Errorf("wrap: %w", Conflict("dup"))) != KindConflict {
		t.Fatalf("expected conflict kind through wrapping")
	}
}

func TestLoginFailed(t *testing.T) {
	err := LoginFailed()

	if !errors.Is(err, ErrLoginFailed) || !errors.Is(err, ErrAuthentication) {
		t.Fatalf("login failure should match both sentinels")
	}
	if MessageOf(err) != "unable to login" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
	if errors.Is(Authentication(errors.New("expired")), ErrLoginFailed) {
		t.Fatalf("plain authentication errors are not login failures")
	}
}
