package geometry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// tableYAML is the on-disk layout of a geometry table:
//
//	version: my-airway-v2
//	regions:
//	  - segment: 1
//	    z: {min: -0.06}
//	  - segment: 2
//	    z: {min: -0.18}
//	    x: {min: -0.016, max: 0.002}
//
// Omitted bounds and axes are unconstrained. Regions keep file order.
type tableYAML struct {
	Version string       `yaml:"version"`
	Regions []regionYAML `yaml:"regions"`
}

type regionYAML struct {
	Segment int        `yaml:"segment"`
	X       boundsYAML `yaml:"x,omitempty"`
	Y       boundsYAML `yaml:"y,omitempty"`
	Z       boundsYAML `yaml:"z,omitempty"`
}

type boundsYAML struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// ParseTable decodes and validates a YAML geometry table.
func ParseTable(data []byte) (*Table, error) {
	var raw tableYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error decoding geometry table: %w", err)
	}
	if raw.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidTable)
	}

	t := &Table{
		Version: raw.Version,
		Regions: make([]Region, len(raw.Regions)),
	}
	for i, r := range raw.Regions {
		t.Regions[i] = Region{
			Segment: Segment(r.Segment),
			X:       boundsInterval(r.X.Min, r.X.Max),
			Y:       boundsInterval(r.Y.Min, r.Y.Max),
			Z:       boundsInterval(r.Z.Min, r.Z.Max),
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTable reads a YAML geometry table from disk.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading geometry table %s: %w", path, err)
	}
	return ParseTable(data)
}

// Resolve returns the table from path when set, otherwise the built-in
// table named by version, otherwise the canonical table.
func Resolve(version, path string) (*Table, error) {
	if path != "" {
		return LoadTable(path)
	}
	if version == "" {
		return Canonical(), nil
	}
	return Lookup(version)
}
