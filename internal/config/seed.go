package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BoardSeed is the YAML file that bootstraps boards and locations on startup.
//
//	locations:
//	  - id: dock-a
//	    name: Dock A
//	boards:
//	  - name: Purchasing
//	    kind: order
//	    link: Receiving
//	    threshold_rules:
//	      - {operator: ">", value: 2, unit: hours, priority: 1, color: red}
//	  - name: Receiving
//	    kind: receive
type BoardSeed struct {
	Locations []LocationSeed `yaml:"locations"`
	Boards    []BoardSpec    `yaml:"boards"`
}

type LocationSeed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type BoardSpec struct {
	Name           string     `yaml:"name"`
	Kind           string     `yaml:"kind"`
	Link           string     `yaml:"link"` // name of the receive board
	ThresholdRules []RuleSpec `yaml:"threshold_rules"`
}

type RuleSpec struct {
	Operator string  `yaml:"operator"`
	Value    float64 `yaml:"value"`
	Unit     string  `yaml:"unit"`
	Priority int     `yaml:"priority"`
	Color    string  `yaml:"color"`
}

// LoadBoardSeed parses the seed file at path. Links must name a board declared
// in the same file.
func LoadBoardSeed(path string) (*BoardSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed BoardSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	names := make(map[string]bool, len(seed.Boards))
	for i, b := range seed.Boards {
		if b.Name == "" {
			return nil, fmt.Errorf("board %d: name is required", i)
		}
		if names[b.Name] {
			return nil, fmt.Errorf("board %q declared twice", b.Name)
		}
		names[b.Name] = true
	}
	for _, b := range seed.Boards {
		if b.Link != "" && !names[b.Link] {
			return nil, fmt.Errorf("board %q links to unknown board %q", b.Name, b.Link)
		}
	}
	for i, l := range seed.Locations {
		if l.ID == "" {
			return nil, fmt.Errorf("location %d: id is required", i)
		}
	}
	return &seed, nil
}
