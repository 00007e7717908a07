// Package covariance estimates covariance matrices from periodic returns and
// derives correlation matrices from them.
package covariance

import (
	"fmt"
	"strings"
)

// Model selects the covariance estimator.
type Model int

const (
	// ModelSample is the unbiased sample covariance.
	ModelSample Model = iota + 1
	// ModelConstantCorrelation replaces every pairwise correlation with the
	// average sample correlation (Elton-Gruber single-index estimate).
	ModelConstantCorrelation
	// ModelShrinkage blends the constant-correlation and sample estimates:
	// delta * constant + (1 - delta) * sample.
	ModelShrinkage
)

var modelNames = map[Model]string{
	ModelSample:              "sample",
	ModelConstantCorrelation: "constant_correlation",
	ModelShrinkage:           "shrinkage",
}

var modelLabels = map[Model]string{
	ModelSample:              "Sample covariance",
	ModelConstantCorrelation: "Constant correlation (Elton-Gruber)",
	ModelShrinkage:           "Shrinkage toward constant correlation",
}

// Models lists every supported model in display order.
func Models() []Model {
	return []Model{ModelSample, ModelConstantCorrelation, ModelShrinkage}
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Label is the human-readable name of the model.
func (m Model) Label() string {
	return modelLabels[m]
}

// Valid reports whether m is a known model.
func (m Model) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// ParseModel accepts the canonical names plus a few aliases.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sample", "sample_cov":
		return ModelSample, nil
	case "constant_correlation", "cc", "elton_gruber", "elton-gruber", "single_index":
		return ModelConstantCorrelation, nil
	case "shrinkage", "ledoit_wolf", "ledoit-wolf":
		return ModelShrinkage, nil
	default:
		return 0, fmt.Errorf("unknown covariance model %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown covariance model %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
