// Package gating implements the hierarchical gating graph and the engine
// that assigns cell-type labels from sequential, parent-scoped intensity
// thresholds.
package gating

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cytogate/cytogate/internal/dataset"
)

// RootLabelID is the implicit "Unlabeled" root of every gating graph.
const RootLabelID = 0

// RootLabelName is the display name of the root node.
const RootLabelName = "Unlabeled"

// Node is one gating step: the (channel, threshold, intensity source) tuple
// that produced a label. Step records gating order, not tree depth; NumCells
// is the raw count of cells passing the threshold before parent-pool
// intersection (a provenance field).
type Node struct {
	LabelID      int     `json:"label_id"`
	LabelName    string  `json:"label_name"`
	Channel      string  `json:"channel,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	IntensityKey string  `json:"intensity_key,omitempty"`
	Override     bool    `json:"override,omitempty"`
	Step         int     `json:"step"`
	NumCells     int     `json:"num_cells,omitempty"`
}

// Graph is the rooted gating tree. Edges point parent -> child.
type Graph struct {
	nodes    map[int]Node
	children map[int][]int
	parent   map[int]int
}

// New creates a root-only graph.
func New() *Graph {
	g := &Graph{
		nodes:    make(map[int]Node),
		children: make(map[int][]int),
		parent:   make(map[int]int),
	}
	g.nodes[RootLabelID] = Node{LabelID: RootLabelID, LabelName: RootLabelName, Step: 0}
	return g
}

// Has reports whether a label id already carries a gating node.
func (g *Graph) Has(labelID int) bool {
	_, ok := g.nodes[labelID]
	return ok
}

// Node returns the gating node for a label id.
func (g *Graph) Node(labelID int) (Node, bool) {
	n, ok := g.nodes[labelID]
	return n, ok
}

// Len returns the number of nodes, root included.
func (g *Graph) Len() int { return len(g.nodes) }

// Parent returns the parent label id of a non-root node.
func (g *Graph) Parent(labelID int) (int, bool) {
	p, ok := g.parent[labelID]
	return p, ok
}

// Children returns the direct children of a node, sorted by label id.
func (g *Graph) Children(labelID int) []int {
	out := append([]int(nil), g.children[labelID]...)
	sort.Ints(out)
	return out
}

// Nodes returns all nodes ordered by step, then label id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		return out[i].LabelID < out[j].LabelID
	})
	return out
}

// Descendants returns every label id reachable from labelID following
// parent -> child edges, exclusive of labelID itself, sorted.
func (g *Graph) Descendants(labelID int) []int {
	var out []int
	queue := append([]int(nil), g.children[labelID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		queue = append(queue, g.children[id]...)
	}
	sort.Ints(out)
	return out
}

// NextStep returns max(step over all nodes) + 1.
func (g *Graph) NextStep() int {
	max := 0
	for _, n := range g.nodes {
		if n.Step > max {
			max = n.Step
		}
	}
	return max + 1
}

// AddGate appends a node and its parent edge. Re-gating an already-gated
// label id is rejected; the parent must already be in the graph.
func (g *Graph) AddGate(n Node, parentID int) error {
	if g.Has(n.LabelID) {
		return &dataset.ValidationError{Msg: fmt.Sprintf("label type %d is already gated", n.LabelID)}
	}
	if !g.Has(parentID) {
		return &dataset.NotFoundError{Kind: "gating parent", Key: fmt.Sprint(parentID)}
	}
	g.nodes[n.LabelID] = n
	g.children[parentID] = append(g.children[parentID], n.LabelID)
	g.parent[n.LabelID] = parentID
	return nil
}

// Remove deletes a non-root node, reparenting its children to its parent.
// Used by the strict label-removal mode.
func (g *Graph) Remove(labelID int) error {
	if labelID == RootLabelID {
		return &dataset.ValidationError{Msg: "cannot remove the root node"}
	}
	if !g.Has(labelID) {
		return &dataset.NotFoundError{Kind: "gating node", Key: fmt.Sprint(labelID)}
	}
	parentID := g.parent[labelID]
	for _, child := range g.children[labelID] {
		g.parent[child] = parentID
		g.children[parentID] = append(g.children[parentID], child)
	}
	siblings := g.children[parentID]
	for i, id := range siblings {
		if id == labelID {
			g.children[parentID] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	delete(g.children, labelID)
	delete(g.parent, labelID)
	delete(g.nodes, labelID)
	return nil
}

// Persisted attribute keys. "graph" holds the adjacency; the siblings each
// hold one node property keyed by label id.
const (
	attrGraph        = "graph"
	attrChannel      = "channel"
	attrThreshold    = "threshold"
	attrIntensityKey = "intensity_key"
	attrOverride     = "override"
	attrLabelName    = "label_name"
	attrLabelID      = "label_id"
	attrStep         = "step"
	attrNumCells     = "num_cells"
)

var attrKeys = []string{
	attrGraph, attrChannel, attrThreshold, attrIntensityKey,
	attrOverride, attrLabelName, attrLabelID, attrStep, attrNumCells,
}

// Encode flattens the graph into persisted-attribute entries: an adjacency
// map plus one flat map per node property.
func (g *Graph) Encode() map[string]any {
	adjacency := make(map[int][]int, len(g.nodes))
	labelNames := make(map[int]string, len(g.nodes))
	labelIDs := make(map[int]int, len(g.nodes))
	steps := make(map[int]int, len(g.nodes))
	channels := make(map[int]string)
	thresholds := make(map[int]float64)
	intensityKeys := make(map[int]string)
	overrides := make(map[int]bool)
	numCells := make(map[int]int)

	for id, n := range g.nodes {
		children := append([]int(nil), g.children[id]...)
		sort.Ints(children)
		adjacency[id] = children
		labelNames[id] = n.LabelName
		labelIDs[id] = n.LabelID
		steps[id] = n.Step
		if id != RootLabelID {
			channels[id] = n.Channel
			thresholds[id] = n.Threshold
			intensityKeys[id] = n.IntensityKey
			overrides[id] = n.Override
			numCells[id] = n.NumCells
		}
	}

	return map[string]any{
		attrGraph:        adjacency,
		attrLabelName:    labelNames,
		attrLabelID:      labelIDs,
		attrStep:         steps,
		attrChannel:      channels,
		attrThreshold:    thresholds,
		attrIntensityKey: intensityKeys,
		attrOverride:     overrides,
		attrNumCells:     numCells,
	}
}

// Load reconstructs the graph from a persisted attribute store. When no
// graph has ever been persisted it returns a root-only graph. With consume,
// the graph entries are stripped from the store (used when the graph is
// about to be rewritten).
func Load(attrs map[string]any, consume bool) (*Graph, error) {
	if attrs == nil {
		return New(), nil
	}
	raw, ok := attrs[attrGraph]
	if !ok {
		return New(), nil
	}

	var adjacency map[int][]int
	if err := coerceAttr(raw, &adjacency); err != nil {
		return nil, fmt.Errorf("failed to decode graph adjacency: %w", err)
	}

	var (
		labelNames    map[int]string
		steps         map[int]int
		channels      map[int]string
		thresholds    map[int]float64
		intensityKeys map[int]string
		overrides     map[int]bool
		numCells      map[int]int
	)
	if err := decodeAttr(attrs, attrLabelName, &labelNames); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrStep, &steps); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrChannel, &channels); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrThreshold, &thresholds); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrIntensityKey, &intensityKeys); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrOverride, &overrides); err != nil {
		return nil, err
	}
	if err := decodeAttr(attrs, attrNumCells, &numCells); err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:    make(map[int]Node, len(adjacency)),
		children: make(map[int][]int, len(adjacency)),
		parent:   make(map[int]int, len(adjacency)),
	}
	for id, children := range adjacency {
		n := Node{
			LabelID:   id,
			LabelName: labelNames[id],
			Step:      steps[id],
		}
		if id != RootLabelID {
			n.Channel = channels[id]
			n.Threshold = thresholds[id]
			n.IntensityKey = intensityKeys[id]
			n.Override = overrides[id]
			n.NumCells = numCells[id]
		}
		g.nodes[id] = n
		sorted := append([]int(nil), children...)
		sort.Ints(sorted)
		g.children[id] = sorted
		for _, child := range children {
			g.parent[child] = id
		}
	}
	if !g.Has(RootLabelID) {
		return nil, fmt.Errorf("persisted gating graph has no root node")
	}

	if consume {
		for _, key := range attrKeys {
			delete(attrs, key)
		}
	}
	return g, nil
}

// decodeAttr coerces one persisted node-property map into its typed form.
func decodeAttr[T any](attrs map[string]any, key string, out *map[int]T) error {
	raw, ok := attrs[key]
	if !ok {
		return nil
	}
	if err := coerceAttr(raw, out); err != nil {
		return fmt.Errorf("failed to decode graph attribute %q: %w", key, err)
	}
	return nil
}

// coerceAttr converts a persisted attribute value to its typed shape. The
// attribute store holds typed maps while in memory but generic
// map[string]any values after a JSON round trip; a marshal/unmarshal pass
// normalizes both.
func coerceAttr(raw, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
