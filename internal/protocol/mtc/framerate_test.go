package mtc

import (
	"errors"
	"testing"
)

func TestFrameRate_NamesAndDivisors(t *testing.T) {
	tests := []struct {
		rate    FrameRate
		name    string
		divisor int
		drop    bool
	}{
		{FR24, "fr24", 24, false},
		{FR25, "fr25", 25, false},
		{FR29, "fr29", 29, true},
		{FR30, "fr30", 30, false},
	}

	for _, tt := range tests {
		if tt.rate.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.rate.String(), tt.name)
		}
		if tt.rate.Divisor() != tt.divisor {
			t.Errorf("%s Divisor() = %d, want %d", tt.name, tt.rate.Divisor(), tt.divisor)
		}
		if tt.rate.IsDropFrame() != tt.drop {
			t.Errorf("%s IsDropFrame() = %v, want %v", tt.name, tt.rate.IsDropFrame(), tt.drop)
		}
	}

	if FrameRate(7).Divisor() != 0 {
		t.Errorf("unknown rate Divisor() = %d, want 0", FrameRate(7).Divisor())
	}
}

func TestFrameRateFromFPS(t *testing.T) {
	for _, fps := range []int{24, 25, 29, 30} {
		r, err := FrameRateFromFPS(fps)
		if err != nil {
			t.Fatalf("FrameRateFromFPS(%d) unexpected error: %v", fps, err)
		}
		if r.Divisor() != fps {
			t.Errorf("FrameRateFromFPS(%d) = %s", fps, r)
		}
	}

	for _, fps := range []int{0, 23, 50, 60, -1} {
		if _, err := FrameRateFromFPS(fps); !errors.Is(err, ErrUnknownFramerate) {
			t.Errorf("FrameRateFromFPS(%d) error = %v, want ErrUnknownFramerate", fps, err)
		}
	}
}

func TestFrameRateFromCode(t *testing.T) {
	r, err := FrameRateFromCode(2)
	if err != nil || r != FR29 {
		t.Errorf("FrameRateFromCode(2) = %v, %v; want fr29", r, err)
	}
	if _, err := FrameRateFromCode(4); !errors.Is(err, ErrUnknownFramerate) {
		t.Errorf("FrameRateFromCode(4) error = %v, want ErrUnknownFramerate", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		rateCode   uint8
		auto       bool
		configured int
		expected   Resolution
	}{
		{"auto fr24", 0, true, 30, Resolution{"fr24", 24}},
		{"auto fr25", 1, true, 30, Resolution{"fr25", 25}},
		{"auto fr29", 2, true, 30, Resolution{"fr29", 29}},
		{"auto fr30", 3, true, 24, Resolution{"fr30", 30}},
		{"fixed ignores packet code", 0, false, 30, Resolution{"fr30", 30}},
		{"fixed drop-frame", 3, false, 29, Resolution{"fr29", 29}},
		{"fixed unknown rate", 3, false, 60, Resolution{"fr60", 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.rateCode, tt.auto, tt.configured)
			if got != tt.expected {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestAbsoluteFrames(t *testing.T) {
	tests := []struct {
		name     string
		h, m, s  int
		f        int
		divisor  int
		expected int64
	}{
		{"fr30", 1, 29, 15, 0, 30, 160650},
		{"fr29 scaled by 1.001", 1, 29, 15, 0, 29, 160811},
		{"fr24", 0, 1, 0, 12, 24, 1452},
		{"fr25", 10, 0, 0, 24, 25, 900024},
		{"zero", 0, 0, 0, 0, 30, 0},
		{"fr29 small count rounds", 0, 0, 1, 0, 29, 30},
		{"unknown divisor", 1, 2, 3, 4, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AbsoluteFrames(tt.h, tt.m, tt.s, tt.f, tt.divisor)
			if got != tt.expected {
				t.Errorf("AbsoluteFrames(%d,%d,%d,%d,%d) = %d, want %d",
					tt.h, tt.m, tt.s, tt.f, tt.divisor, got, tt.expected)
			}
		})
	}
}

func TestTimecode_AbsoluteFrames(t *testing.T) {
	tc := Build(3, 1, 29, 15, 0).Timecode()
	if got := tc.AbsoluteFrames(30); got != 160650 {
		t.Errorf("AbsoluteFrames(30) = %d, want 160650", got)
	}
}
