package gating

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cytogate/cytogate/internal/dataset"
	"github.com/cytogate/cytogate/pkg/colormap"
)

// SchemeStep is one declarative gating step. Parent names a previously
// declared label; empty means the root pool.
type SchemeStep struct {
	Name         string  `yaml:"name" json:"name"`
	Color        string  `yaml:"color" json:"color"`
	Channel      string  `yaml:"channel" json:"channel"`
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	IntensityKey string  `yaml:"intensity_key" json:"intensity_key"`
	Override     bool    `yaml:"override" json:"override"`
	Parent       string  `yaml:"parent" json:"parent"`
}

// Scheme is a gating strategy: an ordered list of steps applied top to
// bottom, each scoped to its parent's pool.
type Scheme struct {
	Steps []SchemeStep `yaml:"steps" json:"steps"`
}

// LoadScheme reads a gating scheme from a YAML file.
func LoadScheme(path string) (*Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheme: %w", err)
	}
	return ParseScheme(data)
}

// ParseScheme parses a gating scheme from YAML bytes.
func ParseScheme(data []byte) (*Scheme, error) {
	var s Scheme
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scheme: %w", err)
	}
	for i, step := range s.Steps {
		if step.Name == "" {
			return nil, fmt.Errorf("scheme step %d has no name", i)
		}
		if step.Channel == "" {
			return nil, fmt.Errorf("scheme step %q has no channel", step.Name)
		}
		if step.IntensityKey == "" {
			return nil, fmt.Errorf("scheme step %q has no intensity_key", step.Name)
		}
	}
	return &s, nil
}

// ApplyScheme declares each step's label (palette-colored when the step
// omits a color) and gates it in order, returning the final snapshot and
// the per-step results.
func ApplyScheme(ds *dataset.Dataset, scheme *Scheme) (*dataset.Dataset, []GateResult, error) {
	results := make([]GateResult, 0, len(scheme.Steps))
	for i, step := range scheme.Steps {
		color := step.Color
		if color == "" {
			color = colormap.PaletteColor(i)
		}
		next, _, err := ds.AddLabel(step.Name, color)
		if err != nil {
			return nil, nil, fmt.Errorf("scheme step %q: %w", step.Name, err)
		}

		parent := dataset.ByID(RootLabelID)
		if step.Parent != "" {
			parent = dataset.ByName(step.Parent)
		}
		next, res, err := Gate(next, GateSpec{
			Label:        dataset.ByName(step.Name),
			Channel:      step.Channel,
			Threshold:    step.Threshold,
			IntensityKey: step.IntensityKey,
			Override:     step.Override,
			Parent:       parent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("scheme step %q: %w", step.Name, err)
		}
		ds = next
		results = append(results, res)
	}
	return ds, results, nil
}
