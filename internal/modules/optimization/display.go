package optimization

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// DisplayDecimals is the precision weights are shown with.
const DisplayDecimals = 4

// DisplayWeight is one row of an allocation table.
type DisplayWeight struct {
	Asset   string          `json:"asset"`
	Weight  decimal.Decimal `json:"weight"`
	Percent decimal.Decimal `json:"percent"`
}

// DisplayWeights rounds weights to DisplayDecimals places and drops the ones
// that round to zero. Rows keep the vector's asset order. The raw weights are
// left untouched; this is presentation only.
func DisplayWeights(w domain.WeightVector) []DisplayWeight {
	rows := make([]DisplayWeight, 0, len(w.Assets))
	for i, asset := range w.Assets {
		if i >= len(w.Weights) {
			break
		}
		d := decimal.NewFromFloat(w.Weights[i]).Round(DisplayDecimals)
		if !d.IsPositive() {
			continue
		}
		rows = append(rows, DisplayWeight{
			Asset:   asset,
			Weight:  d,
			Percent: d.Shift(2).Round(DisplayDecimals - 2),
		})
	}
	return rows
}
