package usecase

import (
	"context"
	"errors"
	"testing"

	"GroupWatch/internal/domain"
)

func TestMovingDetectorKeywordShortCircuit(t *testing.T) {
	t.Parallel()

	confirmer := &fakeConfirmer{}
	det := NewMovingDetector(confirmer, nil)

	ok := det.Detect(context.Background(), "Flyttehjelp",
		"Trenger hjelp med å flytte en sofa og et skap på lørdag")
	if !ok {
		t.Fatal("keyword plus task phrasing should match without confirmation")
	}
	if confirmer.calls != 0 {
		t.Fatal("obvious matches must not spend an LLM call")
	}
	if det.Category() != domain.CategoryTransport {
		t.Fatalf("unexpected category: %s", det.Category())
	}
}

func TestMovingDetectorConsultsConfirmer(t *testing.T) {
	t.Parallel()

	confirmer := &fakeConfirmer{ok: true}
	det := NewMovingDetector(confirmer, nil)

	ok := det.Detect(context.Background(), "Sofa",
		"Har kjøpt en sofa på Finn som må fraktes fra Asker til Oslo")
	if !ok {
		t.Fatal("confirmed borderline match should pass")
	}
	if confirmer.calls != 1 {
		t.Fatalf("expected one confirmation call, got %d", confirmer.calls)
	}
}

func TestMovingDetectorConfirmationFailureFallsThrough(t *testing.T) {
	t.Parallel()

	confirmer := &fakeConfirmer{err: errors.New("llm unavailable")}
	det := NewMovingDetector(confirmer, nil)

	ok := det.Detect(context.Background(), "Sofa",
		"Har kjøpt en sofa på Finn som må fraktes fra Asker til Oslo")
	if ok {
		t.Fatal("confirmation failure must fall through to the cascade")
	}
}

func TestMovingDetectorNoKeywordNoCall(t *testing.T) {
	t.Parallel()

	confirmer := &fakeConfirmer{ok: true}
	det := NewMovingDetector(confirmer, nil)

	ok := det.Detect(context.Background(), "Maling",
		"Ser etter noen som kan male stuen vår i helgen")
	if ok {
		t.Fatal("post without transport keywords must not match")
	}
	if confirmer.calls != 0 {
		t.Fatal("keyword miss must not spend an LLM call")
	}
}

func TestMovingDetectorRejectsOffers(t *testing.T) {
	t.Parallel()

	confirmer := &fakeConfirmer{ok: true}
	det := NewMovingDetector(confirmer, nil)

	ok := det.Detect(context.Background(), "Transport",
		"Vi tilbyr transport og flytting til gode priser, bestill nå")
	if ok {
		t.Fatal("obvious offers must not match the fast path")
	}
	if confirmer.calls != 0 {
		t.Fatal("offers must not spend an LLM call")
	}
}
