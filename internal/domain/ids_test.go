package domain

import (
	"errors"
	"strings"
	"testing"
)

var testHash = strings.Repeat("ab", HashLength/2)

func TestIsValidHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid", testHash, true},
		{"too short", testHash[:94], false},
		{"too long", testHash + "00", false},
		{"not hex", strings.Repeat("zz", HashLength/2), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidHash(tt.input); got != tt.valid {
				t.Errorf("IsValidHash(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestParseContentDescriptorID(t *testing.T) {
	id, err := ParseContentDescriptorID("  " + strings.ToUpper(testHash) + "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != testHash {
		t.Errorf("expected normalized hash, got %q", id)
	}
	if id.PieceID().String() != testHash {
		t.Errorf("descriptor piece id mismatch: %q", id.PieceID())
	}

	if _, err := ParseContentDescriptorID("nope"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParsePieceID(t *testing.T) {
	if _, err := ParsePieceID(testHash); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParsePieceID(""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
