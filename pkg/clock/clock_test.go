package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFromWallRoundsDown(t *testing.T) {
	w := time.Date(2026, 3, 4, 18, 30, 59, 0, time.UTC)
	got := FromWall(w)
	want := FromWall(time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC))
	if got != want {
		t.Fatalf("FromWall(%v) = %d, want %d", w, got, want)
	}
}

func TestWallRoundTrip(t *testing.T) {
	w := time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)
	if got := FromWall(w).Wall(); !got.Equal(w) {
		t.Fatalf("round trip: got %v, want %v", got, w)
	}
}

func TestEpochIsZero(t *testing.T) {
	if got := FromWall(time.Unix(0, 0)); got != 0 {
		t.Fatalf("FromWall(epoch) = %d, want 0", got)
	}
	if got := FromWall(time.Unix(-1, 0)); got != -1 {
		t.Fatalf("FromWall(epoch-1s) = %d, want -1", got)
	}
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		date time.Time
		want time.Weekday
	}{
		{time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), time.Thursday},
		{time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC), time.Thursday},
		{time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), time.Sunday},
		{time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), time.Monday},
	}
	for _, tt := range tests {
		if got := FromWall(tt.date).Weekday(); got != tt.want {
			t.Errorf("Weekday(%v) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	ts := FromWall(time.Date(2026, 10, 15, 17, 42, 0, 0, time.UTC))
	want := FromWall(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	if got := ts.StartOfDay(); got != want {
		t.Fatalf("StartOfDay = %v, want %v", got, want)
	}
}

func TestNowAndUntil(t *testing.T) {
	start := time.Date(2026, 10, 15, 12, 0, 30, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	now := Now(fc)
	if now.Wall() != start.Truncate(time.Minute) {
		t.Fatalf("Now = %v, want %v", now.Wall(), start.Truncate(time.Minute))
	}
	if d := Until(fc, now+2); d != 90*time.Second {
		t.Fatalf("Until = %v, want 90s", d)
	}
}

func TestMaxAndString(t *testing.T) {
	if Max(3, 7) != 7 || Max(7, 3) != 7 {
		t.Fatal("Max should return the later time")
	}
	if Time(0).String() != "-" {
		t.Fatalf("zero time should format as '-', got %q", Time(0).String())
	}
	ts := FromWall(time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC))
	if ts.String() != "2026-01-02 03:04" {
		t.Fatalf("String = %q", ts.String())
	}
}
