package usecase

import (
	"context"
	"testing"

	"GroupWatch/internal/domain"
)

func TestDedupProviderIDHit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.add(domain.Post{PostID: "12345", Body: "stored body"})
	dedup := NewDeduplicator(store, nil)

	dup, existing, err := dedup.Check(context.Background(), domain.CandidateItem{
		RawID: "12345",
		Body:  "anything",
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !dup {
		t.Fatal("expected duplicate on provider id")
	}
	if existing == nil || existing.PostID != "12345" {
		t.Fatalf("expected the stored record back, got %+v", existing)
	}
}

func TestDedupBodyFallbackForUnknownID(t *testing.T) {
	t.Parallel()

	body := "Trenger hjelp med å flytte en sofa fra Majorstuen til Sandvika"
	store := newFakeStore()
	store.add(domain.Post{PostID: "h_aaaabbbbccccdddd", Body: body, State: domain.StateClassificationFailed})
	dedup := NewDeduplicator(store, nil)

	dup, existing, err := dedup.Check(context.Background(), domain.CandidateItem{
		RawID:    "unknown",
		GroupURL: "https://g.example/1",
		Body:     "  Trenger hjelp   med å flytte en sofa\nfra Majorstuen til Sandvika ",
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !dup {
		t.Fatal("expected duplicate via body match")
	}
	if existing == nil || existing.PostID != "h_aaaabbbbccccdddd" {
		t.Fatalf("expected the stored record back, got %+v", existing)
	}
}

func TestDedupShortBodySkipsFallback(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.add(domain.Post{PostID: "h_0000000000000000", Body: "Takk!"})
	dedup := NewDeduplicator(store, nil)

	dup, _, err := dedup.Check(context.Background(), domain.CandidateItem{
		RawID:    "",
		GroupURL: "https://g.example/1",
		Body:     "Takk!",
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if dup {
		t.Fatal("short bodies must never match via the text fallback")
	}
}

func TestDedupNewItem(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dedup := NewDeduplicator(store, nil)

	dup, existing, err := dedup.Check(context.Background(), domain.CandidateItem{
		RawID: "999",
		Body:  "a completely new post that nobody has seen before",
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if dup || existing != nil {
		t.Fatal("expected no duplicate for a new item")
	}
}
