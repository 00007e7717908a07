package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aristath/cryptoptimizer/internal/domain"
)

// DefaultUniverse is the selectable crypto basket used without a universe file.
func DefaultUniverse() domain.Universe {
	return domain.Universe{
		{ID: "BTC-USD", Name: "BTC"},
		{ID: "ETH-USD", Name: "ETH"},
		{ID: "XRP-USD", Name: "XRP"},
		{ID: "LTC-USD", Name: "LTC"},
		{ID: "BCH-USD", Name: "BCH"},
		{ID: "TUSD-USD", Name: "TUSD"},
		{ID: "BAT-USD", Name: "BAT"},
		{ID: "MANA-USD", Name: "MANA"},
	}
}

type universeFile struct {
	Assets []domain.Asset `yaml:"assets"`
}

// LoadUniverse reads an asset list:
//
//	assets:
//	  - id: BTC-USD
//	    name: Bitcoin
func LoadUniverse(path string) (domain.Universe, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}
	return ParseUniverse(content)
}

// ParseUniverse decodes a YAML asset list. Names default to the identifier.
func ParseUniverse(content []byte) (domain.Universe, error) {
	var file universeFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}

	seen := make(map[string]bool, len(file.Assets))
	universe := make(domain.Universe, 0, len(file.Assets))
	for i, a := range file.Assets {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("universe asset %d has no id", i)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("universe lists %s twice", a.ID)
		}
		seen[a.ID] = true
		if strings.TrimSpace(a.Name) == "" {
			a.Name = a.ID
		}
		universe = append(universe, a)
	}
	return universe, nil
}
