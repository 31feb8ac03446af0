package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashLength is the length of a hex-encoded SHA-384 digest.
const HashLength = 96

// PieceID identifies one content-addressed blob.
type PieceID string

// String returns the string representation.
func (id PieceID) String() string {
	return string(id)
}

// Validate checks that the ID is a well-formed blob hash.
func (id PieceID) Validate() error {
	if !IsValidHash(string(id)) {
		return fmt.Errorf("%w: invalid blob hash %q", ErrInvalidInput, string(id))
	}
	return nil
}

// ContentDescriptorID identifies a stream's descriptor blob (the "sd hash").
// It is the coalescing key for downloads.
type ContentDescriptorID string

// String returns the string representation.
func (id ContentDescriptorID) String() string {
	return string(id)
}

// Validate checks that the ID is a well-formed blob hash.
func (id ContentDescriptorID) Validate() error {
	if !IsValidHash(string(id)) {
		return fmt.Errorf("%w: invalid descriptor hash %q", ErrInvalidInput, string(id))
	}
	return nil
}

// PieceID returns the descriptor as a fetchable piece; the manifest is itself a blob.
func (id ContentDescriptorID) PieceID() PieceID {
	return PieceID(id)
}

// ParsePieceID normalizes and validates a blob hash.
func ParsePieceID(s string) (PieceID, error) {
	id := PieceID(strings.ToLower(strings.TrimSpace(s)))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// ParseContentDescriptorID normalizes and validates a descriptor hash.
func ParseContentDescriptorID(s string) (ContentDescriptorID, error) {
	id := ContentDescriptorID(strings.ToLower(strings.TrimSpace(s)))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// IsValidHash reports whether s is a hex-encoded SHA-384 digest.
func IsValidHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
