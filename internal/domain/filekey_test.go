package domain

import "testing"

func TestFileKey_Matches(t *testing.T) {
	a := &Artifact{
		RowID:          7,
		FileName:       "movie.mp4",
		DescriptorHash: ContentDescriptorID("sd"),
		StreamHash:     "stream",
		ClaimID:        "claim",
		ClaimName:      "what",
		TxID:           "tx",
		Nout:           1,
		Outpoint:       "tx:1",
		ChannelClaimID: "chan-id",
		ChannelName:    "@chan",
	}

	tests := []struct {
		key  FileKey
		want bool
	}{
		{FileKey{}, true},
		{ByDescriptorHash("sd"), true},
		{ByDescriptorHash("other"), false},
		{ByFileName("movie.mp4"), true},
		{ByStreamHash("stream"), true},
		{ByRowID(7), true},
		{ByRowID(8), false},
		{ByClaimID("claim"), true},
		{ByOutpoint("tx:1"), true},
		{ByTxID("tx"), true},
		{ByNout(1), true},
		{ByNout(0), false},
		{ByChannelClaimID("chan-id"), true},
		{ByChannelName("@chan"), true},
		{ByClaimName("what"), true},
		{ByClaimName("else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			if got := tt.key.Matches(a); got != tt.want {
				t.Errorf("%s.Matches() = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestFileKey_NoutRequiresClaim(t *testing.T) {
	if ByNout(0).Matches(&Artifact{}) {
		t.Error("nout should not match a file without a claim")
	}
}

func TestArtifact_ApplyClaim(t *testing.T) {
	var a Artifact
	a.ApplyClaim(&ResolvedClaim{ClaimID: "c", Name: "n", TxID: "t", Nout: 3, ChannelName: "@x"})
	if a.Outpoint != "t:3" || a.ClaimName != "n" || a.ChannelName != "@x" {
		t.Errorf("unexpected artifact %+v", a)
	}
	a.ApplyClaim(nil)
	if a.ClaimID != "c" {
		t.Error("nil claim should leave fields untouched")
	}
}
