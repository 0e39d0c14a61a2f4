package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"only spaces", "   ", ""},
		{"leading and trailing spaces", "  conference hall  ", "conference hall"},
		{"inner whitespace collapsed", "big   meeting    room", "big meeting room"},
		{"tabs and newlines", "room\t\tone\ntwo", "room one two"},
		{"already normalized", "room one", "room one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.expected {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTrimAndNormalizeIdempotent(t *testing.T) {
	inputs := []string{"  a  b  ", "room-101", " \t x \n y "}
	for _, in := range inputs {
		once := TrimAndNormalize(in)
		twice := TrimAndNormalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizePlaces(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"negative clamped to zero", -5, 0},
		{"zero unchanged", 0, 0},
		{"normal value unchanged", 25, 25},
		{"above maximum clamped", MaxPlaces + 1, MaxPlaces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePlaces(tt.input); got != tt.expected {
				t.Errorf("NormalizePlaces(%d) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}
