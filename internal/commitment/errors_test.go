package commitment

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPassesThroughTypedErrors(t *testing.T) {
	in := New(KindConflict, OpClaim, "taken")
	out := Wrap(KindInternal, "other", fmt.Errorf("outer: %w", in))
	if !IsKind(out, KindConflict) {
		t.Fatalf("expected conflict to survive wrapping, got %q", KindOf(out))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, OpContribute, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrappable")
	}
	if got := err.Error(); got != "contribute: connection reset (INTERNAL)" {
		t.Fatalf("message: %q", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
	if Wrap(KindInternal, "op", nil) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}
