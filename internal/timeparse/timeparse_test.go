package timeparse

import (
	"testing"
	"time"
)

func TestParseRelative(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		raw  string
		want time.Time
	}{
		{"5m", now.Add(-5 * time.Minute)},
		{"7h", now.Add(-7 * time.Hour)},
		{"3t", now.Add(-3 * time.Hour)},
		{"2d", now.AddDate(0, 0, -2)},
		{"1w", now.AddDate(0, 0, -7)},
		{"2u", now.AddDate(0, 0, -14)},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.raw, now)
		if !ok {
			t.Fatalf("Parse(%q) not recognized", tc.raw)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseYesterday(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	got, ok := Parse("Yesterday at 17:48", now)
	if !ok {
		t.Fatal("yesterday form not recognized")
	}
	want := time.Date(2025, time.June, 9, 17, 48, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, ok = Parse("i går at 08:05", now)
	if !ok {
		t.Fatal("norwegian yesterday form not recognized")
	}
	want = time.Date(2025, time.June, 9, 8, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFullDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	got, ok := Parse("Tuesday 24 January 2025 at 08:42", now)
	if !ok {
		t.Fatal("full form not recognized")
	}
	want := time.Date(2025, time.January, 24, 8, 42, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDayMonthRollsBackFutureDates(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	got, ok := Parse("24 January at 08:42", now)
	if !ok {
		t.Fatal("day-month form not recognized")
	}
	if got.Year() != 2025 {
		t.Fatalf("past date should keep current year, got %d", got.Year())
	}

	got, ok = Parse("24 December at 08:42", now)
	if !ok {
		t.Fatal("future day-month form not recognized")
	}
	if got.Year() != 2024 {
		t.Fatalf("future date should roll back a year, got %d", got.Year())
	}
}

func TestParseDateOnlyDefaultsToNoon(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	got, ok := Parse("5 May 2025", now)
	if !ok {
		t.Fatal("date-only form not recognized")
	}
	want := time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, ok = Parse("5. mai", now)
	if !ok {
		t.Fatal("norwegian date-only form not recognized")
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseVagueTokens(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	for _, raw := range []string{"Recently", "nylig", "Just now"} {
		got, ok := Parse(raw, now)
		if !ok {
			t.Fatalf("Parse(%q) not recognized", raw)
		}
		if !got.Equal(now.Add(-time.Minute)) {
			t.Fatalf("Parse(%q) = %v, want now minus one minute", raw, got)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	for _, raw := range []string{"", "   ", "sometime soon", "99x", "31 February at 10:00", "10 Smarch 2025"} {
		if got, ok := Parse(raw, now); ok {
			t.Fatalf("Parse(%q) unexpectedly recognized as %v", raw, got)
		}
	}
}
