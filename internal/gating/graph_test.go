package gating

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/cytogate/cytogate/internal/dataset"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	nodes := []struct {
		node   Node
		parent int
	}{
		{Node{LabelID: 1, LabelName: "T cells", Channel: "CD3", Threshold: 0.5, IntensityKey: "mean", Step: 1, NumCells: 6}, RootLabelID},
		{Node{LabelID: 2, LabelName: "CD8 T cells", Channel: "CD8", Threshold: 0.5, IntensityKey: "mean", Step: 2, NumCells: 3}, 1},
		{Node{LabelID: 3, LabelName: "B cells", Channel: "CD20", Threshold: 0.4, IntensityKey: "mean", Step: 3, NumCells: 2}, RootLabelID},
	}
	for _, n := range nodes {
		if err := g.AddGate(n.node, n.parent); err != nil {
			t.Fatalf("AddGate(%d) failed: %v", n.node.LabelID, err)
		}
	}
	return g
}

func TestNewGraphHasRoot(t *testing.T) {
	g := New()
	if !g.Has(RootLabelID) {
		t.Fatal("new graph missing root")
	}
	root, _ := g.Node(RootLabelID)
	if root.LabelName != RootLabelName || root.Step != 0 {
		t.Errorf("root node = %+v", root)
	}
	if g.NextStep() != 1 {
		t.Errorf("NextStep on empty graph = %d, want 1", g.NextStep())
	}
}

func TestAddGate(t *testing.T) {
	g := buildTestGraph(t)

	if g.Len() != 4 {
		t.Errorf("Len = %d, want 4", g.Len())
	}
	if p, _ := g.Parent(2); p != 1 {
		t.Errorf("parent of 2 = %d, want 1", p)
	}
	if kids := g.Children(RootLabelID); !reflect.DeepEqual(kids, []int{1, 3}) {
		t.Errorf("root children = %v", kids)
	}
	if g.NextStep() != 4 {
		t.Errorf("NextStep = %d, want 4", g.NextStep())
	}

	// Re-gating an already-gated label is rejected.
	var ve *dataset.ValidationError
	err := g.AddGate(Node{LabelID: 1, LabelName: "T cells", Step: 4}, RootLabelID)
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for duplicate gate, got %v", err)
	}

	// The parent must already be in the graph.
	var nf *dataset.NotFoundError
	err = g.AddGate(Node{LabelID: 9, LabelName: "Monocytes", Step: 4}, 8)
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError for missing parent, got %v", err)
	}
}

func TestDescendants(t *testing.T) {
	g := buildTestGraph(t)
	if got := g.Descendants(RootLabelID); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Descendants(root) = %v", got)
	}
	if got := g.Descendants(1); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("Descendants(1) = %v", got)
	}
	if got := g.Descendants(2); len(got) != 0 {
		t.Errorf("Descendants(2) = %v, want empty", got)
	}
}

func TestNodesOrdering(t *testing.T) {
	g := buildTestGraph(t)
	nodes := g.Nodes()
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.LabelID
	}
	if !reflect.DeepEqual(ids, []int{0, 1, 2, 3}) {
		t.Errorf("node order = %v", ids)
	}
}

func TestRemoveReparentsChildren(t *testing.T) {
	g := buildTestGraph(t)
	if err := g.Remove(1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if g.Has(1) {
		t.Error("node 1 still present")
	}
	if p, _ := g.Parent(2); p != RootLabelID {
		t.Errorf("child 2 reparented to %d, want root", p)
	}
	if kids := g.Children(RootLabelID); !reflect.DeepEqual(kids, []int{2, 3}) {
		t.Errorf("root children after removal = %v", kids)
	}

	var ve *dataset.ValidationError
	if err := g.Remove(RootLabelID); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError removing root, got %v", err)
	}
	var nf *dataset.NotFoundError
	if err := g.Remove(42); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError removing unknown node, got %v", err)
	}
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	g := buildTestGraph(t)
	attrs := g.Encode()

	loaded, err := Load(attrs, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != g.Len() {
		t.Fatalf("round-trip Len = %d, want %d", loaded.Len(), g.Len())
	}
	for _, want := range g.Nodes() {
		got, ok := loaded.Node(want.LabelID)
		if !ok {
			t.Fatalf("node %d lost in round trip", want.LabelID)
		}
		if got != want {
			t.Errorf("node %d = %+v, want %+v", want.LabelID, got, want)
		}
	}
	if !reflect.DeepEqual(loaded.Children(RootLabelID), g.Children(RootLabelID)) {
		t.Errorf("root children differ after round trip")
	}
}

// The attribute store holds generic map[string]any values after a snapshot is
// read back from JSON; the codec must accept that shape too.
func TestLoadFromJSONShapedAttrs(t *testing.T) {
	g := buildTestGraph(t)
	raw, err := json.Marshal(g.Encode())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	loaded, err := Load(attrs, false)
	if err != nil {
		t.Fatalf("Load from JSON-shaped attrs failed: %v", err)
	}
	n, ok := loaded.Node(2)
	if !ok {
		t.Fatal("node 2 missing")
	}
	if n.Channel != "CD8" || n.Threshold != 0.5 || n.Step != 2 || n.NumCells != 3 {
		t.Errorf("node 2 = %+v", n)
	}
	if p, _ := loaded.Parent(2); p != 1 {
		t.Errorf("parent of 2 = %d, want 1", p)
	}
}

func TestLoadMissingGraphReturnsRootOnly(t *testing.T) {
	g, err := Load(nil, false)
	if err != nil {
		t.Fatalf("Load(nil) failed: %v", err)
	}
	if g.Len() != 1 || !g.Has(RootLabelID) {
		t.Errorf("Load(nil) = %d nodes", g.Len())
	}

	g, err = Load(map[string]any{"unrelated": 1}, false)
	if err != nil {
		t.Fatalf("Load without graph key failed: %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("graph-free attrs = %d nodes", g.Len())
	}
}

func TestLoadConsumeStripsGraphKeys(t *testing.T) {
	g := buildTestGraph(t)
	attrs := g.Encode()
	attrs["note"] = "keep me"

	if _, err := Load(attrs, true); err != nil {
		t.Fatalf("Load consume failed: %v", err)
	}
	for _, key := range attrKeys {
		if _, ok := attrs[key]; ok {
			t.Errorf("graph key %q survived consume", key)
		}
	}
	if attrs["note"] != "keep me" {
		t.Errorf("unrelated attr stripped by consume")
	}
}
