package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCostEstimate_Rounded(t *testing.T) {
	est := NewCostEstimate(decimal.RequireFromString("0.123456789"), decimal.RequireFromString("1.000004"))
	r := est.Rounded()

	if !r.DataCost.Equal(decimal.RequireFromString("0.12346")) {
		t.Errorf("unexpected data cost %s", r.DataCost)
	}
	if !r.FeeCost.Equal(decimal.RequireFromString("1")) {
		t.Errorf("unexpected fee cost %s", r.FeeCost)
	}
	if !r.Total.Equal(decimal.RequireFromString("1.12346")) {
		t.Errorf("unexpected total %s", r.Total)
	}
	if !est.Total.Equal(decimal.RequireFromString("1.123460789")) {
		t.Errorf("original should be unrounded, got %s", est.Total)
	}
}

func TestCostEstimate_RoundedTotalMatchesParts(t *testing.T) {
	half := decimal.RequireFromString("0.000005")
	r := NewCostEstimate(half, half).Rounded()

	if !r.Total.Equal(r.DataCost.Add(r.FeeCost)) {
		t.Errorf("total %s != data %s + fee %s", r.Total, r.DataCost, r.FeeCost)
	}
	if !r.Total.Equal(decimal.RequireFromString("0.00002")) {
		t.Errorf("unexpected total %s", r.Total)
	}
}

func TestCostEstimate_RoundedKeepsUnknownFlag(t *testing.T) {
	est := NewCostEstimate(decimal.Zero, decimal.Zero)
	est.DataCostUnknown = true
	if !est.Rounded().DataCostUnknown {
		t.Error("expected flag to survive rounding")
	}
}
