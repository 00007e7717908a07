// Package prices assembles (date, asset) -> adjusted close tables from the
// configured market data sources and prepares them for the analytics core.
package prices

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// DateLayout is the calendar date format used by every source.
const DateLayout = "2006-01-02"

// NewTable builds a table over the union of the observation dates. Cells an
// asset has no observation for are NaN.
func NewTable(assets []string, observations map[string]map[time.Time]float64) domain.PriceTable {
	dateSet := make(map[time.Time]bool)
	for _, byDate := range observations {
		for d := range byDate {
			dateSet[d] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([][]float64, len(dates))
	for t, d := range dates {
		rows[t] = make([]float64, len(assets))
		for i, asset := range assets {
			if p, ok := observations[asset][d]; ok {
				rows[t][i] = p
			} else {
				rows[t][i] = math.NaN()
			}
		}
	}
	return domain.PriceTable{Assets: append([]string(nil), assets...), Dates: dates, Prices: rows}
}

// Select returns the columns for assets, in that order.
func Select(pt domain.PriceTable, assets []string) (domain.PriceTable, error) {
	const op = "prices.Select"

	idx := make([]int, len(assets))
	for k, asset := range assets {
		i, ok := pt.Index(asset)
		if !ok {
			return domain.PriceTable{}, domain.DataError(op, domain.ErrMissingAsset, "no price history for %s", asset)
		}
		idx[k] = i
	}

	rows := make([][]float64, len(pt.Dates))
	for t := range pt.Dates {
		rows[t] = make([]float64, len(assets))
		for k, i := range idx {
			rows[t][k] = pt.Prices[t][i]
		}
	}
	return domain.PriceTable{
		Assets: append([]string(nil), assets...),
		Dates:  append([]time.Time(nil), pt.Dates...),
		Prices: rows,
	}, nil
}

// Slice keeps the rows dated within [start, end). A zero start or end leaves
// that side open.
func Slice(pt domain.PriceTable, start, end time.Time) domain.PriceTable {
	out := domain.PriceTable{Assets: append([]string(nil), pt.Assets...)}
	for t, d := range pt.Dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && !d.Before(end) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Prices = append(out.Prices, append([]float64(nil), pt.Prices[t]...))
	}
	return out
}

// ForwardFill replaces interior gaps with the last valid price and returns
// the number of cells filled. Leading gaps are kept; they become zero returns.
func ForwardFill(pt domain.PriceTable) (domain.PriceTable, int) {
	out := domain.PriceTable{
		Assets: append([]string(nil), pt.Assets...),
		Dates:  append([]time.Time(nil), pt.Dates...),
		Prices: make([][]float64, len(pt.Prices)),
	}
	for t := range pt.Prices {
		out.Prices[t] = append([]float64(nil), pt.Prices[t]...)
	}

	filled := 0
	for i := range out.Assets {
		lastValid := math.NaN()
		for t := range out.Prices {
			p := out.Prices[t][i]
			if math.IsNaN(p) {
				if !math.IsNaN(lastValid) {
					out.Prices[t][i] = lastValid
					filled++
				}
				continue
			}
			lastValid = p
		}
	}
	return out, filled
}

// Validate checks that the table can feed the returns computation for
// assets: every asset has a column with at least one valid price, dates are
// strictly increasing and every present price is finite and positive.
func Validate(pt domain.PriceTable, assets []string) error {
	const op = "prices.Validate"

	if len(pt.Dates) == 0 {
		return domain.DataError(op, domain.ErrEmptySeries, "price table has no rows")
	}
	if len(pt.Prices) != len(pt.Dates) {
		return domain.DataError(op, domain.ErrDimensionMismatch, "%d price rows for %d dates", len(pt.Prices), len(pt.Dates))
	}
	for t, row := range pt.Prices {
		if len(row) != len(pt.Assets) {
			return domain.DataError(op, domain.ErrDimensionMismatch, "row %d has %d prices for %d assets", t, len(row), len(pt.Assets))
		}
		if t > 0 && !pt.Dates[t].After(pt.Dates[t-1]) {
			return domain.DataError(op, domain.ErrUnorderedTimestamps, "date %s follows %s",
				pt.Dates[t].Format(DateLayout), pt.Dates[t-1].Format(DateLayout))
		}
	}

	for _, asset := range assets {
		i, ok := pt.Index(asset)
		if !ok {
			return domain.DataError(op, domain.ErrMissingAsset, "no price history for %s", asset)
		}
		valid := 0
		for t, row := range pt.Prices {
			p := row[i]
			if math.IsNaN(p) {
				continue
			}
			if math.IsInf(p, 0) || p <= 0 {
				return domain.DataError(op, domain.ErrCorruptPrice, "%s has price %v on %s", asset, p, pt.Dates[t].Format(DateLayout))
			}
			valid++
		}
		if valid == 0 {
			return domain.DataError(op, domain.ErrMissingAsset, "%s has no prices in range", asset)
		}
	}
	return nil
}

// SeriesOf extracts the assets as aligned series.
func SeriesOf(pt domain.PriceTable, assets []string) ([]domain.AssetSeries, error) {
	out := make([]domain.AssetSeries, 0, len(assets))
	for _, asset := range assets {
		s, ok := pt.Series(asset)
		if !ok {
			return nil, domain.DataError("prices.SeriesOf", domain.ErrMissingAsset, "no price history for %s", asset)
		}
		out = append(out, s)
	}
	return out, nil
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
