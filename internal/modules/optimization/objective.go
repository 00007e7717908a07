package optimization

import (
	"fmt"
	"strings"
)

// Objective selects the portfolio construction rule.
type Objective int

const (
	// ObjectiveMinVariance is the global minimum variance portfolio.
	ObjectiveMinVariance Objective = iota + 1
	// ObjectiveMaxSharpe maximizes (w'μ - rf) / sqrt(w'Σw).
	ObjectiveMaxSharpe
	// ObjectiveRiskParity equalizes each asset's contribution to variance.
	ObjectiveRiskParity
)

var objectiveNames = map[Objective]string{
	ObjectiveMinVariance: "gmv",
	ObjectiveMaxSharpe:   "msr",
	ObjectiveRiskParity:  "erc",
}

var objectiveLabels = map[Objective]string{
	ObjectiveMinVariance: "Global minimum variance",
	ObjectiveMaxSharpe:   "Maximum Sharpe ratio",
	ObjectiveRiskParity:  "Equal risk contribution",
}

// Objectives lists every supported objective in display order.
func Objectives() []Objective {
	return []Objective{ObjectiveMinVariance, ObjectiveMaxSharpe, ObjectiveRiskParity}
}

func (o Objective) String() string {
	if name, ok := objectiveNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Objective(%d)", int(o))
}

// Label is the human-readable name of the objective.
func (o Objective) Label() string {
	return objectiveLabels[o]
}

// Valid reports whether o is a known objective.
func (o Objective) Valid() bool {
	_, ok := objectiveNames[o]
	return ok
}

// ParseObjective accepts the short codes and their long forms.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gmv", "min_variance", "minimum_variance", "min_volatility":
		return ObjectiveMinVariance, nil
	case "msr", "max_sharpe", "maximum_sharpe":
		return ObjectiveMaxSharpe, nil
	case "erc", "risk_parity", "equal_risk_contribution":
		return ObjectiveRiskParity, nil
	default:
		return 0, fmt.Errorf("unknown objective %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Objective) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unknown objective %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Objective) UnmarshalText(text []byte) error {
	parsed, err := ParseObjective(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
