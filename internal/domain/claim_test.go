package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func streamClaimJSON(source string, fee string) string {
	feeField := ""
	if fee != "" {
		feeField = fmt.Sprintf(`,"fee":{"currency":"USD","amount":%s,"address":"bX"}`, fee)
	}
	return fmt.Sprintf(`{"version":"_0_0_1","claimType":"streamType","stream":{"source":{"sourceType":"lbry_sd_hash","source":%q,"contentType":"video/mp4"},"metadata":{"title":"t"%s}}}`,
		source, feeField)
}

func TestDecodeClaim_Stream(t *testing.T) {
	sd := strings.Repeat("a", HashLength)
	c, err := DecodeClaim([]byte(streamClaimJSON(sd, "1.5")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsStream() {
		t.Fatal("expected stream claim")
	}
	if c.SourceHash().String() != sd {
		t.Errorf("expected source %q, got %q", sd, c.SourceHash())
	}
	fee := c.SourceFee()
	if fee == nil {
		t.Fatal("expected fee")
	}
	if !fee.Amount.Equal(decimal.RequireFromString("1.5")) || fee.Currency != "USD" {
		t.Errorf("unexpected fee %+v", fee)
	}
}

func TestDecodeClaim_Certificate(t *testing.T) {
	c, err := DecodeClaim([]byte(`{"version":"_0_0_1","claimType":"certificateType","certificate":{"keyType":"SECP256k1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.IsStream() {
		t.Error("certificate should not be a stream")
	}
	if c.SourceHash() != "" || c.SourceFee() != nil {
		t.Error("certificate should have no source")
	}
}

func TestDecodeClaim_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"garbage", "\x00\x01"},
		{"unknown type", `{"claimType":"other"}`},
		{"stream without body", `{"claimType":"streamType"}`},
		{"bad source", streamClaimJSON("short", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeClaim([]byte(tt.value)); !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeClaimHex(t *testing.T) {
	sd := strings.Repeat("b", HashLength)
	raw := streamClaimJSON(sd, "")
	c, err := DecodeClaimHex(hex.EncodeToString([]byte(raw)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SourceFee() != nil {
		t.Error("expected no fee")
	}

	if _, err := DecodeClaimHex("zz"); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestResolvedClaim_Outpoint(t *testing.T) {
	r := &ResolvedClaim{TxID: "deadbeef", Nout: 2, Value: []byte("hi")}
	if r.Outpoint() != "deadbeef:2" {
		t.Errorf("unexpected outpoint %q", r.Outpoint())
	}
	if r.Hex() != "6869" {
		t.Errorf("unexpected hex %q", r.Hex())
	}
}

func TestResolveResult_Found(t *testing.T) {
	if (ResolveResult{}).Found() {
		t.Error("empty result should not be found")
	}
	if (ResolveResult{Claim: &ResolvedClaim{}, Err: ErrNotFound}).Found() {
		t.Error("errored result should not be found")
	}
	if !(ResolveResult{Claim: &ResolvedClaim{}}).Found() {
		t.Error("expected found")
	}
}
