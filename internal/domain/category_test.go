package domain

import "testing"

func TestNormalizeCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Category
	}{
		{"Transport / Moving", CategoryTransport},
		{"transport / moving", CategoryTransport},
		{"Transport", CategoryTransport},
		{"moving", CategoryTransport},
		{"Cleaning", CategoryCleaning},
		{"Plumbing / Electrical and more stuff", CategoryPlumbing},
		{"", CategoryGeneral},
		{"Something unrelated", CategoryGeneral},
	}

	for _, tc := range cases {
		if got := NormalizeCategory(tc.raw); got != tc.want {
			t.Fatalf("NormalizeCategory(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeSecondaries(t *testing.T) {
	t.Parallel()

	got := NormalizeSecondaries(CategoryTransport, []string{
		"Transport / Moving", "Cleaning", "cleaning", "Assembly",
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 secondaries, got %v", got)
	}
	if got[0] != CategoryCleaning || got[1] != CategoryAssembly {
		t.Fatalf("unexpected secondaries: %v", got)
	}
}
