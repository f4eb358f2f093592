package dErrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	err := New(CodeCustodyConflict, "item held elsewhere")
	if !HasCode(err, CodeCustodyConflict) {
		t.Fatal("expected code to match")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("expected code mismatch")
	}
	if HasCode(nil, CodeNotFound) {
		t.Fatal("nil error has no code")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("row scan failed")
	err := Wrap(cause, CodeInternal, "failed to load evidence")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to stay in the chain")
	}
	if CodeOf(err) != CodeInternal {
		t.Fatalf("expected internal code, got %s", CodeOf(err))
	}

	// Wrapping again keeps the outermost code authoritative.
	outer := Wrap(err, CodeConflict, "cannot delete")
	if CodeOf(outer) != CodeConflict {
		t.Fatalf("expected outer code conflict, got %s", CodeOf(outer))
	}
	if Wrap(nil, CodeInternal, "x") != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestMessageOfUncodedError(t *testing.T) {
	err := fmt.Errorf("pq: connection refused")
	if MessageOf(err) != "internal error" {
		t.Fatalf("uncoded errors must not leak details, got %q", MessageOf(err))
	}
	if CodeOf(err) != CodeInternal {
		t.Fatalf("uncoded errors default to internal, got %s", CodeOf(err))
	}
}
