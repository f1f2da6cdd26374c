package execerr

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Spawn("exec", os.ErrNotExist)
	msg := err.Error()
	if !strings.HasPrefix(msg, "exec: failed to start command") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, os.ErrNotExist.Error()) {
		t.Fatalf("expected cause in message, got %q", msg)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}

func TestIsMatchesWrappedKinds(t *testing.T) {
	err := fmt.Errorf("rerun 7: %w", NotFound("history", "entry 7 not found"))
	if !Is(err, KindNotFound) {
		t.Fatalf("expected not_found kind through wrapping")
	}
	if Is(err, KindTimeout) {
		t.Fatalf("did not expect timeout kind")
	}
	if Is(errors.New("plain"), KindNotFound) {
		t.Fatalf("plain errors have no kind")
	}
}

func TestErrorWithoutMessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: KindIO}
	if err.Error() != "io" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
