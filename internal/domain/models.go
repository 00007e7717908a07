// Package domain provides the value types shared by the analytics core and
// its collaborators. All types are plain data: fixed-order asset lists with
// parallel arrays, owned by value and never mutated after construction.
package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PricePoint is a single adjusted-close observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// AssetSeries is the chronological price history of one asset.
type AssetSeries struct {
	Asset  string       `json:"asset"`
	Points []PricePoint `json:"points"`
}

// Prices returns the price column of the series.
func (s AssetSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// PriceTable is a (date, asset) -> adjusted close table as supplied by a
// market-data source. Missing cells are NaN.
type PriceTable struct {
	Assets []string    `json:"assets"`
	Dates  []time.Time `json:"dates"`
	Prices [][]float64 `json:"prices"` // Prices[t][i] is Assets[i] at Dates[t]
}

// Index returns the column of asset in the table.
func (pt PriceTable) Index(asset string) (int, bool) {
	for i, a := range pt.Assets {
		if a == asset {
			return i, true
		}
	}
	return -1, false
}

// Column returns a copy of the price column at index i.
func (pt PriceTable) Column(i int) []float64 {
	col := make([]float64, len(pt.Dates))
	for t := range pt.Dates {
		col[t] = pt.Prices[t][i]
	}
	return col
}

// Series extracts one asset as an AssetSeries. ok is false when the asset
// is not part of the table.
func (pt PriceTable) Series(asset string) (AssetSeries, bool) {
	i, ok := pt.Index(asset)
	if !ok {
		return AssetSeries{}, false
	}
	points := make([]PricePoint, len(pt.Dates))
	for t, d := range pt.Dates {
		points[t] = PricePoint{Time: d, Price: pt.Prices[t][i]}
	}
	return AssetSeries{Asset: asset, Points: points}, true
}

// ReturnsMatrix holds periodic (or cumulative) fractional returns, one row
// per timestamp and one column per asset.
type ReturnsMatrix struct {
	Assets []string    `json:"assets"`
	Times  []time.Time `json:"times"`
	Values [][]float64 `json:"values"` // Values[t][i]
}

// Rows returns the number of observations.
func (m ReturnsMatrix) Rows() int { return len(m.Values) }

// Cols returns the number of assets.
func (m ReturnsMatrix) Cols() int { return len(m.Assets) }

// Column returns a copy of the return column at index i.
func (m ReturnsMatrix) Column(i int) []float64 {
	col := make([]float64, len(m.Values))
	for t := range m.Values {
		col[t] = m.Values[t][i]
	}
	return col
}

// Dense returns the matrix as a T x N gonum matrix.
func (m ReturnsMatrix) Dense() *mat.Dense {
	d := mat.NewDense(len(m.Values), len(m.Assets), nil)
	for t, row := range m.Values {
		d.SetRow(t, row)
	}
	return d
}

// ByTime renders the matrix as timestamp -> asset -> value for charting.
// Keys are dates when every timestamp is a UTC midnight and RFC3339
// timestamps otherwise, so intraday rows never collapse into one day.
func (m ReturnsMatrix) ByTime() map[string]map[string]float64 {
	layout := "2006-01-02"
	for _, ts := range m.Times {
		if !isMidnightUTC(ts) {
			layout = time.RFC3339Nano
			break
		}
	}

	out := make(map[string]map[string]float64, len(m.Times))
	for t, ts := range m.Times {
		row := make(map[string]float64, len(m.Assets))
		for i, a := range m.Assets {
			row[a] = m.Values[t][i]
		}
		out[ts.UTC().Format(layout)] = row
	}
	return out
}

func isMidnightUTC(ts time.Time) bool {
	u := ts.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

// SquareMatrix is a labelled N x N matrix. CovarianceMatrix and
// CorrelationMatrix share this layout.
type SquareMatrix struct {
	Assets []string    `json:"assets"`
	Values [][]float64 `json:"values"`
}

// Size returns N.
func (s SquareMatrix) Size() int { return len(s.Assets) }

// At returns the entry for a pair of asset identifiers.
func (s SquareMatrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, id := range s.Assets {
		if id == a {
			i = k
		}
		if id == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return s.Values[i][j], true
}

// Sym returns the matrix as a gonum symmetric matrix (upper triangle is used).
func (s SquareMatrix) Sym() *mat.SymDense {
	n := len(s.Values)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, s.Values[i][j])
		}
	}
	return sym
}

// Map renders the matrix as asset -> asset -> value.
func (s SquareMatrix) Map() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(s.Assets))
	for i, a := range s.Assets {
		row := make(map[string]float64, len(s.Assets))
		for j, b := range s.Assets {
			row[b] = s.Values[i][j]
		}
		out[a] = row
	}
	return out
}

// Scale returns a copy with every entry multiplied by f.
func (s SquareMatrix) Scale(f float64) SquareMatrix {
	vals := make([][]float64, len(s.Values))
	for i, row := range s.Values {
		vals[i] = make([]float64, len(row))
		for j, v := range row {
			vals[i][j] = v * f
		}
	}
	return SquareMatrix{Assets: append([]string(nil), s.Assets...), Values: vals}
}

// CovarianceMatrix is a symmetric positive semi-definite covariance matrix.
type CovarianceMatrix = SquareMatrix

// CorrelationMatrix is a symmetric matrix with unit diagonal.
type CorrelationMatrix = SquareMatrix

// NewSquareMatrix allocates a zero N x N matrix labelled by assets.
func NewSquareMatrix(assets []string) SquareMatrix {
	vals := make([][]float64, len(assets))
	for i := range vals {
		vals[i] = make([]float64, len(assets))
	}
	return SquareMatrix{Assets: append([]string(nil), assets...), Values: vals}
}

// WeightVector is a long-only, fully-invested allocation.
type WeightVector struct {
	Assets  []string  `json:"assets"`
	Weights []float64 `json:"weights"`
}

// Sum returns the total weight.
func (w WeightVector) Sum() float64 {
	s := 0.0
	for _, v := range w.Weights {
		s += v
	}
	return s
}

// Get returns the weight of asset.
func (w WeightVector) Get(asset string) (float64, bool) {
	for i, a := range w.Assets {
		if a == asset {
			return w.Weights[i], true
		}
	}
	return 0, false
}

// Map renders the vector as asset -> weight.
func (w WeightVector) Map() map[string]float64 {
	out := make(map[string]float64, len(w.Assets))
	for i, a := range w.Assets {
		out[a] = w.Weights[i]
	}
	return out
}

// Finite reports whether every weight is a finite number.
func (w WeightVector) Finite() bool {
	for _, v := range w.Weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AssetVector is a per-asset statistic such as annualized return or volatility.
type AssetVector struct {
	Assets []string  `json:"assets"`
	Values []float64 `json:"values"`
}

// Get returns the value for asset.
func (v AssetVector) Get(asset string) (float64, bool) {
	for i, a := range v.Assets {
		if a == asset {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Map renders the vector as asset -> value.
func (v AssetVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Assets))
	for i, a := range v.Assets {
		out[a] = v.Values[i]
	}
	return out
}

// Asset is a selectable instrument with its display name.
type Asset struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Universe is the ordered list of selectable assets.
type Universe []Asset

// IDs returns the asset identifiers in order.
func (u Universe) IDs() []string {
	ids := make([]string, len(u))
	for i, a := range u {
		ids[i] = a.ID
	}
	return ids
}

// DisplayName returns the configured name for id, or id itself.
func (u Universe) DisplayName(id string) string {
	for _, a := range u {
		if a.ID == id && a.Name != "" {
			return a.Name
		}
	}
	return id
}

// Contains reports whether id is part of the universe.
func (u Universe) Contains(id string) bool {
	for _, a := range u {
		if a.ID == id {
			return true
		}
	}
	return false
}
