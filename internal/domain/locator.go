package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// LocatorScheme is the optional prefix of a content locator.
const LocatorScheme = "lbry://"

const (
	channelPrefix    = "@"
	claimIDSeparator = "#"
	sequenceSep      = ":"
	bidPositionSep   = "$"
	pathSeparator    = "/"

	maxClaimIDLength = 40
	invalidNameChars = " =&#:$@%?;/\\\"<>{}|^~[]`"
)

// Locator is a parsed human-readable content address such as
// lbry://name, lbry://name#claimid or lbry://@channel/path.
type Locator struct {
	Name          string
	ClaimID       string
	ClaimSequence int
	BidPosition   int
	Path          string
}

// IsChannel reports whether the locator names a channel.
func (l Locator) IsChannel() bool {
	return strings.HasPrefix(l.Name, channelPrefix)
}

// String returns the canonical form with the scheme prefix.
func (l Locator) String() string {
	var sb strings.Builder
	sb.WriteString(LocatorScheme)
	sb.WriteString(l.Name)
	switch {
	case l.ClaimID != "":
		sb.WriteString(claimIDSeparator + l.ClaimID)
	case l.ClaimSequence > 0:
		sb.WriteString(sequenceSep + strconv.Itoa(l.ClaimSequence))
	case l.BidPosition > 0:
		sb.WriteString(bidPositionSep + strconv.Itoa(l.BidPosition))
	}
	if l.Path != "" {
		sb.WriteString(pathSeparator + l.Path)
	}
	return sb.String()
}

// ParseLocator parses a content locator. Malformed input yields ErrInvalidInput.
func ParseLocator(s string) (Locator, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, LocatorScheme)
	if raw == "" {
		return Locator{}, fmt.Errorf("%w: empty locator", ErrInvalidInput)
	}

	var l Locator
	if i := strings.Index(raw, pathSeparator); i >= 0 {
		l.Path = raw[i+1:]
		raw = raw[:i]
		if l.Path == "" {
			return Locator{}, fmt.Errorf("%w: empty path in %q", ErrInvalidInput, s)
		}
		if err := validateName(l.Path); err != nil {
			return Locator{}, fmt.Errorf("%w: path in %q: %v", ErrInvalidInput, s, err)
		}
	}

	name, modifier, sep := splitModifier(raw)
	switch sep {
	case claimIDSeparator:
		if modifier == "" || len(modifier) > maxClaimIDLength || !isHex(modifier) {
			return Locator{}, fmt.Errorf("%w: invalid claim id in %q", ErrInvalidInput, s)
		}
		l.ClaimID = strings.ToLower(modifier)
	case sequenceSep, bidPositionSep:
		n, err := strconv.Atoi(modifier)
		if err != nil || n < 1 {
			return Locator{}, fmt.Errorf("%w: invalid modifier in %q", ErrInvalidInput, s)
		}
		if sep == sequenceSep {
			l.ClaimSequence = n
		} else {
			l.BidPosition = n
		}
	}

	bare := strings.TrimPrefix(name, channelPrefix)
	if bare == "" {
		return Locator{}, fmt.Errorf("%w: empty name in %q", ErrInvalidInput, s)
	}
	if err := validateName(bare); err != nil {
		return Locator{}, fmt.Errorf("%w: %q: %v", ErrInvalidInput, s, err)
	}
	if l.Path != "" && !strings.HasPrefix(name, channelPrefix) {
		return Locator{}, fmt.Errorf("%w: only channel locators may have a path: %q", ErrInvalidInput, s)
	}

	l.Name = name
	return l, nil
}

// NormalizeLocator returns the canonical string for s, or s unchanged if it does not parse.
func NormalizeLocator(s string) string {
	l, err := ParseLocator(s)
	if err != nil {
		return s
	}
	return l.String()
}

func splitModifier(raw string) (name, modifier, sep string) {
	idx := strings.IndexAny(raw, claimIDSeparator+sequenceSep+bidPositionSep)
	if idx < 0 {
		return raw, "", ""
	}
	return raw[:idx], raw[idx+1:], raw[idx : idx+1]
}

func validateName(name string) error {
	if i := strings.IndexAny(name, invalidNameChars); i >= 0 {
		return fmt.Errorf("invalid character %q", name[i])
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
