package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeFromTypedError(t *testing.T) {
	err := New(CodeFetch, "rpc unreachable")
	if got := ExitCode(err); got != int(CodeFetch) {
		t.Fatalf("expected exit code %d, got %d", CodeFetch, got)
	}
}

func TestExitCodeFromWrappedChain(t *testing.T) {
	inner := Wrap(CodeUpstream, "completion call failed", fmt.Errorf("timeout"))
	err := fmt.Errorf("handle chat: %w", inner)
	if got := ExitCode(err); got != int(CodeUpstream) {
		t.Fatalf("expected exit code %d, got %d", CodeUpstream, got)
	}
	if !Is(err, CodeUpstream) {
		t.Fatal("expected Is to match wrapped code")
	}
}

func TestExitCodeFromPlainError(t *testing.T) {
	if got := ExitCode(fmt.Errorf("boom")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit code, got %d", got)
	}
	if got := ExitCode(nil); got != int(CodeSuccess) {
		t.Fatalf("expected success exit code, got %d", got)
	}
}
