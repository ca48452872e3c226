package telegram

import (
	"context"
	"strings"
	"testing"

	"GroupWatch/internal/domain"
)

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	msg := buildMessage([]domain.Post{
		{
			Title:     "Flyttehjelp",
			Category:  domain.CategoryTransport,
			Location:  "Oslo",
			GroupName: "nabohjelp",
			SourceURL: "https://g.example/posts/101",
		},
		{
			Title:     "Vaskehjelp",
			Category:  domain.CategoryCleaning,
			Location:  "Unknown",
			GroupName: "nabohjelp",
		},
	}, "https://g.example/groups/1")

	if !strings.HasPrefix(msg, "2 new matching post(s)") {
		t.Fatalf("missing header: %q", msg)
	}
	for _, want := range []string{
		"Flyttehjelp", "Transport / Moving", "Oslo",
		"https://g.example/posts/101", "Vaskehjelp",
		"Group: https://g.example/groups/1",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendRejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	err := n.Send(context.Background(), []domain.Post{{Title: "x"}}, "")
	if err == nil {
		t.Fatal("expected error without token and chat id")
	}
}

func TestSendSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	n := NewNotifier("token", "chat")
	if err := n.Send(context.Background(), nil, ""); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
}
