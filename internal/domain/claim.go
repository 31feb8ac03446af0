package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ClaimType distinguishes stream claims from channel certificates.
type ClaimType string

const (
	ClaimTypeStream      ClaimType = "streamType"
	ClaimTypeCertificate ClaimType = "certificateType"
)

// Fee is a key fee declared by a stream's publisher.
type Fee struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Address  string          `json:"address,omitempty"`
}

// Source points at a stream's descriptor blob.
type Source struct {
	SourceType  string `json:"sourceType"`
	Source      string `json:"source"`
	ContentType string `json:"contentType,omitempty"`
}

// StreamMetadata is the publisher-supplied description of a stream.
type StreamMetadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	License     string `json:"license,omitempty"`
	NSFW        bool   `json:"nsfw,omitempty"`
	Fee         *Fee   `json:"fee,omitempty"`
}

// StreamClaim is the stream-specific part of a claim value.
type StreamClaim struct {
	Source   Source         `json:"source"`
	Metadata StreamMetadata `json:"metadata"`
}

// Claim is a decoded claim value.
type Claim struct {
	Version     string          `json:"version"`
	ClaimType   ClaimType       `json:"claimType"`
	Stream      *StreamClaim    `json:"stream,omitempty"`
	Certificate json.RawMessage `json:"certificate,omitempty"`
}

// DecodeClaim parses a serialized claim value.
func DecodeClaim(value []byte) (*Claim, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty claim value", ErrDecode)
	}

	var c Claim
	if err := json.Unmarshal(value, &c); err != nil {
		return nil, fmt.Errorf("%w: claim value: %v", ErrDecode, err)
	}

	switch c.ClaimType {
	case ClaimTypeStream:
		if c.Stream == nil {
			return nil, fmt.Errorf("%w: stream claim without stream body", ErrDecode)
		}
		if _, err := ParseContentDescriptorID(c.Stream.Source.Source); err != nil {
			return nil, fmt.Errorf("%w: stream claim source: %v", ErrDecode, err)
		}
	case ClaimTypeCertificate:
	default:
		return nil, fmt.Errorf("%w: unknown claim type %q", ErrDecode, c.ClaimType)
	}

	return &c, nil
}

// DecodeClaimHex parses a hex-encoded serialized claim value.
func DecodeClaimHex(s string) (*Claim, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: claim hex: %v", ErrDecode, err)
	}
	return DecodeClaim(raw)
}

// IsStream reports whether the claim publishes a stream.
func (c *Claim) IsStream() bool {
	return c != nil && c.ClaimType == ClaimTypeStream && c.Stream != nil
}

// SourceHash returns the descriptor hash of a stream claim.
func (c *Claim) SourceHash() ContentDescriptorID {
	if !c.IsStream() {
		return ""
	}
	return ContentDescriptorID(strings.ToLower(c.Stream.Source.Source))
}

// SourceFee returns the declared key fee, or nil if there is none.
func (c *Claim) SourceFee() *Fee {
	if !c.IsStream() {
		return nil
	}
	return c.Stream.Metadata.Fee
}

// ResolvedClaim is a claim as returned by the ledger.
type ResolvedClaim struct {
	ClaimID        string          `json:"claim_id" yaml:"claim_id"`
	Name           string          `json:"name" yaml:"name"`
	TxID           string          `json:"txid" yaml:"txid"`
	Nout           int             `json:"nout" yaml:"nout"`
	Height         int             `json:"height" yaml:"height"`
	Amount         decimal.Decimal `json:"amount" yaml:"-"`
	ChannelClaimID string          `json:"channel_claim_id,omitempty" yaml:"channel_claim_id"`
	ChannelName    string          `json:"channel_name,omitempty" yaml:"channel_name"`

	// Value is the serialized claim; decode it with DecodeClaim.
	Value []byte `json:"value" yaml:"-"`
}

// Outpoint returns the claim's "txid:nout" identifier.
func (r *ResolvedClaim) Outpoint() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Nout)
}

// Hex returns the serialized claim value hex encoded.
func (r *ResolvedClaim) Hex() string {
	return hex.EncodeToString(r.Value)
}

// ResolveResult is the per-locator outcome of a resolution.
type ResolveResult struct {
	Claim       *ResolvedClaim
	Certificate *ResolvedClaim
	// Err is set when this locator failed; ErrNotFound for unknown names.
	Err error
}

// Found reports whether a claim came back.
func (r ResolveResult) Found() bool {
	return r.Err == nil && r.Claim != nil
}
