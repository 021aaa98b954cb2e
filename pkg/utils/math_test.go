package utils

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"round down", 66.666666, 66.67},
		{"round up half", 0.005, 0.01},
		{"negative", -12.345, -12.35},
		{"already rounded", 100.0, 100.0},
		{"zero", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round2(tt.input); got != tt.expected {
				t.Errorf("Round2(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(1.23456, 4); got != 1.2346 {
		t.Errorf("RoundTo(1.23456, 4) = %v", got)
	}
	if got := RoundTo(1.23456, 0); got != 1.0 {
		t.Errorf("RoundTo(1.23456, 0) = %v", got)
	}
}
