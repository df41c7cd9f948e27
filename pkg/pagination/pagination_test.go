package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{
		CreatedAt: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		ID:        uuid.New(),
	}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if cursor != nil {
		t.Fatal("blank token should mean first page")
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90IGpzb24", EncodeCursor(Cursor{})} {
		if _, err := ParseCursor(token); err == nil {
			t.Fatalf("expected error for %q", token)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
