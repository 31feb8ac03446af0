package domain

import "github.com/shopspring/decimal"

// CostPrecision is the number of decimal places reported to callers.
const CostPrecision = 5

// CostEstimate is the predicted price of acquiring a stream, in LBC.
type CostEstimate struct {
	DataCost decimal.Decimal `json:"data_cost"`
	FeeCost  decimal.Decimal `json:"fee_cost"`
	Total    decimal.Decimal `json:"total"`

	// DataCostUnknown is set when the stream size could not be determined
	// and DataCost was taken as zero.
	DataCostUnknown bool `json:"data_cost_unknown,omitempty"`
}

// NewCostEstimate sums data and fee cost without rounding.
func NewCostEstimate(dataCost, feeCost decimal.Decimal) CostEstimate {
	return CostEstimate{
		DataCost: dataCost,
		FeeCost:  feeCost,
		Total:    dataCost.Add(feeCost),
	}
}

// Rounded returns a copy with both parts rounded to CostPrecision places
// and Total recomputed as their sum.
func (c CostEstimate) Rounded() CostEstimate {
	r := NewCostEstimate(c.DataCost.Round(CostPrecision), c.FeeCost.Round(CostPrecision))
	r.DataCostUnknown = c.DataCostUnknown
	return r
}
