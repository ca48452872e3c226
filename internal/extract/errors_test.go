package extract

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")

	if KindOf(Timeout(base)) != KindTimeout {
		t.Fatal("timeout kind lost")
	}
	if KindOf(Crash(base)) != KindCrash {
		t.Fatal("crash kind lost")
	}
	if KindOf(Parse(base)) != KindParse {
		t.Fatal("parse kind lost")
	}
	if KindOf(base) != KindUnknown {
		t.Fatal("untagged error must report unknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Fatal("nil must report unknown")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("source x page 2: %w", Crash(errors.New("session died")))
	if !IsCrash(wrapped) {
		t.Fatal("crash kind must survive fmt.Errorf wrapping")
	}
	if IsTimeout(wrapped) {
		t.Fatal("crash must not classify as timeout")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	if !errors.Is(Crash(cause), cause) {
		t.Fatal("tagged errors must unwrap to their cause")
	}
}
