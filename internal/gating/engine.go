package gating

import (
	"log"
	"sort"

	"github.com/cytogate/cytogate/internal/dataset"
)

// GateSpec describes one gating instruction. Label must reference an already
// declared cell type; Parent defaults to the root ("Unlabeled") pool.
type GateSpec struct {
	Label        dataset.LabelRef
	Channel      string
	Threshold    float64
	IntensityKey string
	Override     bool
	Parent       dataset.LabelRef
}

// GateResult reports the cardinalities of one gating step.
type GateResult struct {
	LabelID   int `json:"label_id"`
	ParentID  int `json:"parent_id"`
	Step      int `json:"step"`
	Gated     int `json:"cells_gated"`
	Available int `json:"cells_available"`
	Selected  int `json:"cells_selected"`
}

// Gate assigns a label to the cells of the parent pool that pass an
// intensity threshold, and extends the gating graph with the step. The
// returned dataset has the updated assignment and the re-encoded graph in
// its attribute store; the input dataset is untouched. An empty selection
// is a valid, if unproductive, gate.
func Gate(ds *dataset.Dataset, spec GateSpec) (*dataset.Dataset, GateResult, error) {
	labelID, err := ds.Resolve(spec.Label)
	if err != nil {
		return nil, GateResult{}, err
	}
	parentID, err := resolveParent(ds, spec.Parent)
	if err != nil {
		return nil, GateResult{}, err
	}

	graph, err := Load(ds.Attrs, false)
	if err != nil {
		return nil, GateResult{}, err
	}
	step := graph.NextStep()

	gatedDS, err := ds.FilterByIntensity(spec.IntensityKey, spec.Channel, func(v float64) bool {
		return v > spec.Threshold
	})
	if err != nil {
		return nil, GateResult{}, err
	}
	gated := gatedDS.Cells

	// The available pool is captured before this step is added to the graph.
	pool := []int{parentID}
	if spec.Override {
		pool = append(pool, graph.Descendants(parentID)...)
	}
	available := ds.CellsFor(pool, false)

	selected := intersect(gated, available)

	label, _ := ds.LabelByID(labelID)
	log.Printf("gating %q (%d): %d of %d gated cells selected (%d available)",
		label.Name, labelID, len(selected), len(gated), len(available))

	out, err := ds.WithAssignment(selected, labelID)
	if err != nil {
		return nil, GateResult{}, err
	}

	if err := graph.AddGate(Node{
		LabelID:      labelID,
		LabelName:    label.Name,
		Channel:      spec.Channel,
		Threshold:    spec.Threshold,
		IntensityKey: spec.IntensityKey,
		Override:     spec.Override,
		Step:         step,
		NumCells:     len(gated),
	}, parentID); err != nil {
		return nil, GateResult{}, err
	}
	out = out.WithAttrs(graph.Encode())

	return out, GateResult{
		LabelID:   labelID,
		ParentID:  parentID,
		Step:      step,
		Gated:     len(gated),
		Available: len(available),
		Selected:  len(selected),
	}, nil
}

// resolveParent resolves a parent reference; the root pool (id 0) is always
// valid, everything else must be a declared label.
func resolveParent(ds *dataset.Dataset, ref dataset.LabelRef) (int, error) {
	if ref == dataset.ByID(RootLabelID) {
		return RootLabelID, nil
	}
	return ds.Resolve(ref)
}

// RemoveLabelTypes removes labels from the registry, resetting their cells
// to unlabeled. By default the gating graph keeps the removed labels' nodes
// (matching the long-standing registry/graph asymmetry); with prune the
// nodes are also removed and their children reparented.
func RemoveLabelTypes(ds *dataset.Dataset, ids []int, prune bool) (*dataset.Dataset, error) {
	out, err := ds.RemoveLabels(ids...)
	if err != nil {
		return nil, err
	}
	if !prune {
		return out, nil
	}

	graph, err := Load(out.Attrs, false)
	if err != nil {
		return nil, err
	}
	changed := false
	for _, id := range ids {
		if !graph.Has(id) {
			continue
		}
		if err := graph.Remove(id); err != nil {
			return nil, err
		}
		changed = true
	}
	if changed {
		out = out.WithAttrs(graph.Encode())
	}
	return out, nil
}

// intersect returns the sorted intersection of two sorted id slices.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	sort.Ints(out)
	return out
}
