package schedule

import (
	"errors"
	"testing"
)

func TestNormalizeSlot(t *testing.T) {
	tests := []struct {
		day, hour         int
		wantDay, wantHour int
		wantErr           bool
	}{
		{0, 0, 0, 0, false},
		{3, 23, 3, 23, false},
		{3, 24, 4, 0, false},
		{6, 24, 0, 0, false},
		{6, 29, 0, 5, false},
		{0, 48, 0, 0, true},
		{-1, 3, 0, 0, true},
		{7, 3, 0, 0, true},
	}
	for _, tt := range tests {
		day, hour, err := NormalizeSlot(tt.day, tt.hour)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSlot) {
				t.Fatalf("(%d,%d): expected ErrInvalidSlot, got %v", tt.day, tt.hour, err)
			}
			continue
		}
		if err != nil || day != tt.wantDay || hour != tt.wantHour {
			t.Fatalf("(%d,%d): got (%d,%d,%v)", tt.day, tt.hour, day, hour, err)
		}
	}
}

func TestClockLabel(t *testing.T) {
	tests := map[[2]int]string{
		{0, 0}:   "12:00 AM",
		{9, 5}:   "9:05 AM",
		{12, 0}:  "12:00 PM",
		{13, 30}: "1:30 PM",
		{23, 59}: "11:59 PM",
	}
	for in, want := range tests {
		if got := ClockLabel(in[0], in[1]); got != want {
			t.Fatalf("%v: expected %q, got %q", in, want, got)
		}
	}
}
