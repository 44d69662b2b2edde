package apperr

import (
	"errors"
	"testing"
)

func TestRateLimited_RetryAfterMs(t *testing.T) {
	err := RateLimited(2500, errors.New("429"))
	ms, ok := RetryAfterMs(err)
	if !ok || ms != 2500 {
		t.Fatalf("RetryAfterMs = (%d, %v), want (2500, true)", ms, ok)
	}
}

func TestRetryAfterMs_FalseForNonRateLimited(t *testing.T) {
	err := Transport("boom", nil)
	if _, ok := RetryAfterMs(err); ok {
		t.Fatal("expected RetryAfterMs to be false for a Transport error")
	}
}

func TestAs_UnwrapsWrappedError(t *testing.T) {
	inner := Validation("bad field")
	wrapped := New(KindTransport, "outer", inner)

	ae, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the typed error")
	}
	if ae.Kind != KindTransport {
		t.Errorf("Kind = %v, want KindTransport (the outer wrap)", ae.Kind)
	}
}

func TestAs_FalseForPlainError(t *testing.T) {
	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("expected As to be false for a non-apperr error")
	}
}
