// Package returns converts price histories into periodic, cumulative and
// annualized return statistics.
package returns

import (
	"math"
	"time"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/pkg/formulas"
)

// Periodic computes the relative change between consecutive observations
// of each series. All series must share the same timestamps.
//
// The first row has no prior observation and is stored as 0, as are rows
// before an asset's first valid (non-NaN) price, so estimators never see
// missing values.
func Periodic(series ...domain.AssetSeries) (domain.ReturnsMatrix, error) {
	const op = "returns.Periodic"

	times, err := alignedTimes(op, series)
	if err != nil {
		return domain.ReturnsMatrix{}, err
	}

	n := len(series)
	assets := make([]string, n)
	values := newRows(len(times), n)

	for i, s := range series {
		assets[i] = s.Asset
		prices, err := cleanPrices(op, s)
		if err != nil {
			return domain.ReturnsMatrix{}, err
		}
		for t := 1; t < len(prices); t++ {
			prev, cur := prices[t-1], prices[t]
			if math.IsNaN(prev) || math.IsNaN(cur) {
				continue
			}
			values[t][i] = cur/prev - 1
		}
	}

	return domain.ReturnsMatrix{Assets: assets, Times: times, Values: values}, nil
}

// Cumulative computes the running compounded return of each series from the
// start of the window: prod(1 + r) - 1. It is intended for display.
func Cumulative(series ...domain.AssetSeries) (domain.ReturnsMatrix, error) {
	periodic, err := Periodic(series...)
	if err != nil {
		return domain.ReturnsMatrix{}, err
	}
	return Compound(periodic), nil
}

// Compound turns a periodic returns matrix into cumulative returns.
func Compound(periodic domain.ReturnsMatrix) domain.ReturnsMatrix {
	n := periodic.Cols()
	values := newRows(periodic.Rows(), n)
	growth := make([]float64, n)
	for i := range growth {
		growth[i] = 1
	}
	for t, row := range periodic.Values {
		for i, r := range row {
			growth[i] *= 1 + r
			values[t][i] = growth[i] - 1
		}
	}
	return domain.ReturnsMatrix{
		Assets: append([]string(nil), periodic.Assets...),
		Times:  append([]time.Time(nil), periodic.Times...),
		Values: values,
	}
}

// AnnualizedReturn compounds the average periodic return of each asset to an
// annual rate: (1 + mean(r))^periodsPerYear - 1.
func AnnualizedReturn(m domain.ReturnsMatrix, periodsPerYear int) (domain.AssetVector, error) {
	if err := checkPeriods("returns.AnnualizedReturn", m, periodsPerYear); err != nil {
		return domain.AssetVector{}, err
	}
	out := make([]float64, m.Cols())
	for i := range out {
		mean := formulas.Mean(m.Column(i))
		out[i] = math.Pow(1+mean, float64(periodsPerYear)) - 1
	}
	return domain.AssetVector{Assets: append([]string(nil), m.Assets...), Values: out}, nil
}

// AnnualizedVolatility scales the sample standard deviation of each asset's
// periodic returns by sqrt(periodsPerYear). An all-zero column yields exactly 0.
func AnnualizedVolatility(m domain.ReturnsMatrix, periodsPerYear int) (domain.AssetVector, error) {
	if err := checkPeriods("returns.AnnualizedVolatility", m, periodsPerYear); err != nil {
		return domain.AssetVector{}, err
	}
	scale := math.Sqrt(float64(periodsPerYear))
	out := make([]float64, m.Cols())
	for i := range out {
		out[i] = formulas.StdDev(m.Column(i)) * scale
	}
	return domain.AssetVector{Assets: append([]string(nil), m.Assets...), Values: out}, nil
}

func checkPeriods(op string, m domain.ReturnsMatrix, periodsPerYear int) error {
	if periodsPerYear <= 0 {
		return domain.ConfigurationError(op, domain.ErrInvalidSetting, "periods per year must be positive, got %d", periodsPerYear)
	}
	if m.Rows() == 0 {
		return domain.DataError(op, domain.ErrEmptySeries, "returns matrix has no rows")
	}
	return nil
}

// alignedTimes checks that every series has the same strictly increasing
// timestamps and returns them.
func alignedTimes(op string, series []domain.AssetSeries) ([]time.Time, error) {
	if len(series) == 0 {
		return nil, domain.DataError(op, domain.ErrEmptySeries, "no series provided")
	}
	ref := series[0]
	if len(ref.Points) == 0 {
		return nil, domain.DataError(op, domain.ErrEmptySeries, "asset %s has no observations", ref.Asset)
	}
	times := make([]time.Time, len(ref.Points))
	for t, p := range ref.Points {
		if t > 0 && !p.Time.After(ref.Points[t-1].Time) {
			return nil, domain.DataError(op, domain.ErrUnorderedTimestamps, "asset %s at %s", ref.Asset, p.Time.Format(time.RFC3339))
		}
		times[t] = p.Time
	}

	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if seen[s.Asset] {
			return nil, domain.ConfigurationError(op, domain.ErrDuplicateAsset, "asset %s", s.Asset)
		}
		seen[s.Asset] = true
		if len(s.Points) == 0 {
			return nil, domain.DataError(op, domain.ErrEmptySeries, "asset %s has no observations", s.Asset)
		}
		if len(s.Points) != len(times) {
			return nil, domain.DataError(op, domain.ErrDimensionMismatch, "asset %s has %d observations, expected %d", s.Asset, len(s.Points), len(times))
		}
		for t, p := range s.Points {
			if !p.Time.Equal(times[t]) {
				return nil, domain.DataError(op, domain.ErrDimensionMismatch, "asset %s is not aligned at row %d", s.Asset, t)
			}
		}
	}
	return times, nil
}

// cleanPrices validates a price column: leading NaNs are allowed, anything
// after the first valid price must be a finite positive number.
func cleanPrices(op string, s domain.AssetSeries) ([]float64, error) {
	prices := s.Prices()
	started := false
	for t, p := range prices {
		if math.IsNaN(p) {
			if started {
				return nil, domain.DataError(op, domain.ErrCorruptPrice, "asset %s has a gap at %s", s.Asset, s.Points[t].Time.Format("2006-01-02"))
			}
			continue
		}
		if math.IsInf(p, 0) || p <= 0 {
			return nil, domain.DataError(op, domain.ErrCorruptPrice, "asset %s has price %v at %s", s.Asset, p, s.Points[t].Time.Format("2006-01-02"))
		}
		started = true
	}
	if !started {
		return nil, domain.DataError(op, domain.ErrMissingAsset, "asset %s has no valid prices", s.Asset)
	}
	return prices, nil
}

func newRows(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for t := range out {
		out[t] = make([]float64, cols)
	}
	return out
}
