// Package service coordinates the dataset snapshot, the gating engine,
// rendering and caching behind the HTTP API.
package service

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/cytogate/cytogate/internal/audit"
	"github.com/cytogate/cytogate/internal/cache"
	"github.com/cytogate/cytogate/internal/dataset"
	"github.com/cytogate/cytogate/internal/gating"
	"github.com/cytogate/cytogate/internal/render"
)

// GraphNode is the API view of one gating node: the node itself plus its
// position in the tree.
type GraphNode struct {
	gating.Node
	ParentID *int  `json:"parent_id,omitempty"`
	Children []int `json:"children"`
}

// AnnotationService serves a single dataset and applies gating operations to
// it. Every mutation swaps in a fresh snapshot under the write lock and bumps
// the revision, which keys all cache entries.
type AnnotationService struct {
	mu  sync.RWMutex
	ds  *dataset.Dataset
	rev int

	cache    *cache.Manager
	renderer *render.Renderer
	audit    *audit.Store // optional
}

// NewAnnotationService creates the service. The audit store may be nil.
func NewAnnotationService(ds *dataset.Dataset, cm *cache.Manager, r *render.Renderer, as *audit.Store) *AnnotationService {
	return &AnnotationService{
		ds:       ds,
		cache:    cm,
		renderer: r,
		audit:    as,
	}
}

// Snapshot returns the current dataset snapshot and its revision. The
// snapshot is safe to read concurrently; it is never mutated.
func (s *AnnotationService) Snapshot() (*dataset.Dataset, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds, s.rev
}

// Labels returns the current label registry.
func (s *AnnotationService) Labels() []dataset.Label {
	ds, _ := s.Snapshot()
	return ds.Labels
}

// Graph returns the gating graph as a flat node list ordered by step.
func (s *AnnotationService) Graph() ([]GraphNode, error) {
	ds, _ := s.Snapshot()
	g, err := gating.Load(ds.Attrs, false)
	if err != nil {
		return nil, err
	}
	nodes := g.Nodes()
	out := make([]GraphNode, 0, len(nodes))
	for _, n := range nodes {
		gn := GraphNode{Node: n, Children: g.Children(n.LabelID)}
		if p, ok := g.Parent(n.LabelID); ok {
			parent := p
			gn.ParentID = &parent
		}
		out = append(out, gn)
	}
	return out, nil
}

// AddLabel declares a new cell type and returns its allocated id.
func (s *AnnotationService) AddLabel(name, color string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, id, err := s.ds.AddLabel(name, color)
	if err != nil {
		return 0, err
	}
	s.swapLocked(next)
	return id, nil
}

// RenameLabel sets a label's display name.
func (s *AnnotationService) RenameLabel(id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ds.RenameLabel(id, name)
	if err != nil {
		return err
	}
	s.swapLocked(next)
	return nil
}

// RecolorLabel sets a label's display color.
func (s *AnnotationService) RecolorLabel(id int, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.ds.RecolorLabel(id, color)
	if err != nil {
		return err
	}
	s.swapLocked(next)
	return nil
}

// RemoveLabels removes cell types, resetting their cells to unlabeled. With
// prune the gating graph nodes are removed as well.
func (s *AnnotationService) RemoveLabels(ids []int, prune bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]dataset.Label, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.ds.LabelByID(id); ok {
			removed = append(removed, l)
		}
	}

	next, err := gating.RemoveLabelTypes(s.ds, ids, prune)
	if err != nil {
		return err
	}
	s.swapLocked(next)

	if s.audit != nil {
		for _, l := range removed {
			if _, err := s.audit.Record(&audit.Event{
				Kind:      audit.EventRemove,
				LabelID:   l.ID,
				LabelName: l.Name,
			}); err != nil {
				log.Printf("WARN: failed to record remove event for label %d: %v", l.ID, err)
			}
		}
	}
	return nil
}

// Gate runs one gating step and returns its cardinalities.
func (s *AnnotationService) Gate(spec gating.GateSpec) (gating.GateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, res, err := gating.Gate(s.ds, spec)
	if err != nil {
		return gating.GateResult{}, err
	}
	s.swapLocked(next)

	if s.audit != nil {
		label, _ := next.LabelByID(res.LabelID)
		if _, err := s.audit.Record(&audit.Event{
			Kind:         audit.EventGate,
			LabelID:      res.LabelID,
			LabelName:    label.Name,
			ParentID:     res.ParentID,
			Channel:      spec.Channel,
			Threshold:    spec.Threshold,
			IntensityKey: spec.IntensityKey,
			Override:     spec.Override,
			Step:         res.Step,
			NumCells:     res.Gated,
			NumAssigned:  res.Selected,
		}); err != nil {
			log.Printf("WARN: failed to record gate event for label %d: %v", res.LabelID, err)
		}
	}
	return res, nil
}

// ApplyScheme runs a declarative gating scheme top to bottom.
func (s *AnnotationService) ApplyScheme(scheme *gating.Scheme) ([]gating.GateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, results, err := gating.ApplyScheme(s.ds, scheme)
	if err != nil {
		return nil, err
	}
	s.swapLocked(next)
	return results, nil
}

// CellsFor returns the cell ids currently assigned to a label, cached per
// revision.
func (s *AnnotationService) CellsFor(labelID int) ([]int, error) {
	ds, rev := s.Snapshot()
	if _, err := ds.Resolve(dataset.ByID(labelID)); err != nil && labelID != gating.RootLabelID {
		return nil, err
	}

	key := cache.QueryKey("cells", rev, strconv.Itoa(labelID))
	if raw, ok := s.cache.GetQuery(key); ok {
		var cells []int
		if err := json.Unmarshal(raw, &cells); err == nil {
			return cells, nil
		}
	}

	var cells []int
	if labelID == gating.RootLabelID {
		cells = ds.CellsFor(nil, true)
	} else {
		cells = ds.CellsFor([]int{labelID}, false)
	}
	if raw, err := json.Marshal(cells); err == nil {
		s.cache.SetQuery(key, raw)
	}
	return cells, nil
}

// Events returns the most recent audit events.
func (s *AnnotationService) Events(limit int) ([]*audit.Event, error) {
	if s.audit == nil {
		return nil, fmt.Errorf("audit journal is not configured")
	}
	return s.audit.ListEvents(limit)
}

// LabelMaskPNG renders the label-colored segmentation mask, cached per
// revision.
func (s *AnnotationService) LabelMaskPNG() ([]byte, error) {
	ds, rev := s.Snapshot()
	key := cache.RenderKey("labels", rev, "")
	if data, ok := s.cache.GetRender(key); ok {
		return data, nil
	}
	data, err := s.renderer.RenderLabels(ds)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRender(key, data); err != nil {
		log.Printf("WARN: failed to cache label render: %v", err)
	}
	return data, nil
}

// SegmentationPNG renders the raw segmentation mask, cached per revision.
func (s *AnnotationService) SegmentationPNG() ([]byte, error) {
	ds, rev := s.Snapshot()
	key := cache.RenderKey("segmentation", rev, "")
	if data, ok := s.cache.GetRender(key); ok {
		return data, nil
	}
	data, err := s.renderer.RenderSegmentation(ds)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRender(key, data); err != nil {
		log.Printf("WARN: failed to cache segmentation render: %v", err)
	}
	return data, nil
}

// ChannelPNG renders one image plane as a heatmap, cached per revision.
func (s *AnnotationService) ChannelPNG(channel, colormapName string) ([]byte, error) {
	ds, rev := s.Snapshot()
	key := cache.RenderKey("channel", rev, channel+":"+colormapName)
	if data, ok := s.cache.GetRender(key); ok {
		return data, nil
	}
	data, err := s.renderer.RenderChannel(ds, channel, colormapName)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRender(key, data); err != nil {
		log.Printf("WARN: failed to cache channel render: %v", err)
	}
	return data, nil
}

// Stats reports dataset and cache statistics.
func (s *AnnotationService) Stats() map[string]interface{} {
	ds, rev := s.Snapshot()
	stats := s.cache.Stats()
	stats["revision"] = rev
	stats["num_cells"] = ds.NumCells()
	stats["num_labels"] = len(ds.Labels)
	stats["num_channels"] = len(ds.Channels)
	return stats
}

// swapLocked installs a new snapshot; the caller holds the write lock.
func (s *AnnotationService) swapLocked(next *dataset.Dataset) {
	s.ds = next
	s.rev++
}
