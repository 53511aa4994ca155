package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Universe describes the tradable instrument set scanned by the coordinator.
// Unlike the threshold surface this file is static for a process lifetime:
// changing the universe means changing what the provider must serve, which is
// a deploy-time decision.
type Universe struct {
	Instruments []Instrument `yaml:"instruments"`
	Warm        []string     `yaml:"warm"` // symbols pre-computed ahead of the main scan
}

// Instrument is one scannable symbol.
type Instrument struct {
	Symbol  string `yaml:"symbol"`
	Enabled bool   `yaml:"enabled"`
}

// LoadUniverse reads the universe definition from a YAML file.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}
	if len(u.Instruments) == 0 {
		return nil, fmt.Errorf("universe file %s lists no instruments", path)
	}
	return &u, nil
}

// Symbols returns the enabled instrument symbols in file order.
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.Instruments))
	for _, inst := range u.Instruments {
		if inst.Enabled {
			out = append(out, inst.Symbol)
		}
	}
	return out
}

// DefaultUniverse returns a compact offline universe for scans without a
// universe file.
func DefaultUniverse() *Universe {
	symbols := []string{"BTCUSD", "ETHUSD", "SOLUSD", "ADAUSD", "LINKUSD", "AVAXUSD"}
	u := &Universe{Warm: []string{"BTCUSD", "ETHUSD"}}
	for _, s := range symbols {
		u.Instruments = append(u.Instruments, Instrument{Symbol: s, Enabled: true})
	}
	return u
}
