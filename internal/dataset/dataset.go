// Package dataset holds the labeled multi-dimensional container for
// multiplexed imaging data: image planes, a segmentation mask, a per-cell
// observation table, per-cell intensity tables, the cell-type label registry
// and assignment, and a generic persisted attribute store.
//
// Mutating operations never modify the receiver; they return a new *Dataset
// sharing unchanged layers, so callers can chain operations and treat every
// returned value as an immutable snapshot.
package dataset

import (
	"fmt"
	"sort"
)

// Label is one defined cell type. ID 0 is reserved for "Unlabeled" and never
// stored as an explicit entry.
type Label struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Mask is a per-pixel segmentation mask. Pix holds cell ids row-major,
// 0 marks background.
type Mask struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Pix    []int32 `json:"pix"`
}

// At returns the cell id at pixel (x, y).
func (m *Mask) At(x, y int) int32 {
	return m.Pix[y*m.Width+x]
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	pix := make([]int32, len(m.Pix))
	copy(pix, m.Pix)
	return &Mask{Width: m.Width, Height: m.Height, Pix: pix}
}

// CellIDs returns the sorted set of non-zero cell ids present in the mask.
func (m *Mask) CellIDs() []int {
	seen := make(map[int]struct{})
	for _, v := range m.Pix {
		if v != 0 {
			seen[int(v)] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Dataset is the container. Fields are exported for codecs and tests, but
// callers must treat a Dataset as read-only and mutate through the methods,
// which return fresh snapshots.
type Dataset struct {
	// Cells is the sorted coordinate of segmentation-derived cell ids.
	Cells []int `json:"cells"`
	// Channels names the intensity-table columns.
	Channels []string `json:"channels"`
	// Obs maps an observation feature (e.g. centroid-x) to per-cell values
	// aligned with Cells.
	Obs map[string][]float64 `json:"obs"`
	// Intensity maps an intensity key (quantification layer) to a
	// cells x channels table.
	Intensity map[string][][]float64 `json:"intensity"`
	// Image maps a channel name to its pixel plane (row-major, mask dims).
	Image map[string][]float64 `json:"image,omitempty"`
	// Segmentation is nil until a mask is added.
	Segmentation *Mask `json:"segmentation,omitempty"`
	// Labels is the registry of defined cell types, sorted by ID.
	Labels []Label `json:"labels"`
	// Assignment holds one label id per cell (0 = unlabeled), aligned with
	// Cells. Nil until the first label is declared.
	Assignment []int `json:"assignment,omitempty"`
	// Attrs is the persisted attribute store; the gating graph codec writes
	// its serialized form here.
	Attrs map[string]any `json:"attrs"`
}

// New creates a dataset over a fixed cell coordinate and channel list.
func New(cells []int, channels []string) *Dataset {
	sorted := make([]int, len(cells))
	copy(sorted, cells)
	sort.Ints(sorted)
	return &Dataset{
		Cells:     sorted,
		Channels:  append([]string(nil), channels...),
		Obs:       make(map[string][]float64),
		Intensity: make(map[string][][]float64),
		Attrs:     make(map[string]any),
	}
}

// NewFromMask creates a dataset whose cell coordinate is derived from the
// non-zero ids of a segmentation mask.
func NewFromMask(mask *Mask, channels []string) *Dataset {
	ds := New(mask.CellIDs(), channels)
	ds.Segmentation = mask
	return ds
}

// clone makes a shallow snapshot: slice headers and map references are
// copied, so an operation must copy any layer it rewrites.
func (d *Dataset) clone() *Dataset {
	out := *d
	out.Obs = make(map[string][]float64, len(d.Obs))
	for k, v := range d.Obs {
		out.Obs[k] = v
	}
	out.Intensity = make(map[string][][]float64, len(d.Intensity))
	for k, v := range d.Intensity {
		out.Intensity[k] = v
	}
	if d.Image != nil {
		out.Image = make(map[string][]float64, len(d.Image))
		for k, v := range d.Image {
			out.Image[k] = v
		}
	}
	out.Attrs = make(map[string]any, len(d.Attrs))
	for k, v := range d.Attrs {
		out.Attrs[k] = v
	}
	return &out
}

// NumCells returns the size of the cell coordinate.
func (d *Dataset) NumCells() int { return len(d.Cells) }

// HasSegmentation reports whether a segmentation mask is present.
func (d *Dataset) HasSegmentation() bool { return d.Segmentation != nil }

// HasObs reports whether an observation table is present.
func (d *Dataset) HasObs() bool { return len(d.Obs) > 0 }

// cellIndex returns the position of a cell id in the coordinate.
func (d *Dataset) cellIndex(cell int) (int, bool) {
	i := sort.SearchInts(d.Cells, cell)
	if i < len(d.Cells) && d.Cells[i] == cell {
		return i, true
	}
	return 0, false
}

// AssignmentOf returns the label id currently assigned to a cell.
func (d *Dataset) AssignmentOf(cell int) (int, bool) {
	i, ok := d.cellIndex(cell)
	if !ok || d.Assignment == nil {
		return 0, ok
	}
	return d.Assignment[i], true
}

// WithSegmentation returns a snapshot with the given mask attached.
func (d *Dataset) WithSegmentation(mask *Mask) *Dataset {
	out := d.clone()
	out.Segmentation = mask
	return out
}

// WithObs returns a snapshot with one observation feature set. The values
// must align with the cell coordinate.
func (d *Dataset) WithObs(feature string, values []float64) (*Dataset, error) {
	if len(values) != len(d.Cells) {
		return nil, validationf("obs feature %q has %d values for %d cells", feature, len(values), len(d.Cells))
	}
	out := d.clone()
	out.Obs[feature] = append([]float64(nil), values...)
	return out, nil
}

// WithIntensity returns a snapshot with one intensity table set. The table
// must be cells x channels.
func (d *Dataset) WithIntensity(key string, table [][]float64) (*Dataset, error) {
	if len(table) != len(d.Cells) {
		return nil, validationf("intensity table %q has %d rows for %d cells", key, len(table), len(d.Cells))
	}
	for i, row := range table {
		if len(row) != len(d.Channels) {
			return nil, validationf("intensity table %q row %d has %d columns for %d channels", key, i, len(row), len(d.Channels))
		}
	}
	out := d.clone()
	out.Intensity[key] = table
	return out, nil
}

// WithImage returns a snapshot with one image plane set. The plane must
// match the segmentation mask dimensions when a mask is present.
func (d *Dataset) WithImage(channel string, pix []float64) (*Dataset, error) {
	if d.Segmentation != nil && len(pix) != d.Segmentation.Width*d.Segmentation.Height {
		return nil, validationf("image plane %q has %d pixels, mask has %d", channel, len(pix), d.Segmentation.Width*d.Segmentation.Height)
	}
	out := d.clone()
	if out.Image == nil {
		out.Image = make(map[string][]float64)
	}
	out.Image[channel] = pix
	return out, nil
}

// WithAttrs returns a snapshot with the given attribute entries merged in.
// A nil value deletes the key.
func (d *Dataset) WithAttrs(entries map[string]any) *Dataset {
	out := d.clone()
	for k, v := range entries {
		if v == nil {
			delete(out.Attrs, k)
		} else {
			out.Attrs[k] = v
		}
	}
	return out
}

// WithAssignment returns a snapshot in which every listed cell is assigned
// the given label id. Cells outside the coordinate are an error; all other
// cells keep their prior assignment.
func (d *Dataset) WithAssignment(cells []int, labelID int) (*Dataset, error) {
	out := d.clone()
	assign := make([]int, len(d.Cells))
	copy(assign, d.Assignment)
	for _, cell := range cells {
		i, ok := d.cellIndex(cell)
		if !ok {
			return nil, notFoundf("cell", fmt.Sprint(cell))
		}
		assign[i] = labelID
	}
	out.Assignment = assign
	return out, nil
}

// SelectCells returns a snapshot narrowed to the given cell ids. Obs,
// intensity tables and the assignment are subset row-wise; the segmentation
// mask, image planes, registry and attrs are carried over unchanged.
func (d *Dataset) SelectCells(cells []int) (*Dataset, error) {
	idx := make([]int, 0, len(cells))
	sorted := make([]int, len(cells))
	copy(sorted, cells)
	sort.Ints(sorted)
	for _, cell := range sorted {
		i, ok := d.cellIndex(cell)
		if !ok {
			return nil, notFoundf("cell", fmt.Sprint(cell))
		}
		idx = append(idx, i)
	}

	out := d.clone()
	out.Cells = sorted
	out.Obs = make(map[string][]float64, len(d.Obs))
	for feature, values := range d.Obs {
		sub := make([]float64, len(idx))
		for j, i := range idx {
			sub[j] = values[i]
		}
		out.Obs[feature] = sub
	}
	out.Intensity = make(map[string][][]float64, len(d.Intensity))
	for key, table := range d.Intensity {
		sub := make([][]float64, len(idx))
		for j, i := range idx {
			sub[j] = table[i]
		}
		out.Intensity[key] = sub
	}
	if d.Assignment != nil {
		assign := make([]int, len(idx))
		for j, i := range idx {
			assign[j] = d.Assignment[i]
		}
		out.Assignment = assign
	}
	return out, nil
}

// PruneMaskToCells returns a snapshot whose segmentation mask keeps only
// pixels belonging to the current cell coordinate; all other pixels are
// reset to background.
func (d *Dataset) PruneMaskToCells() *Dataset {
	if d.Segmentation == nil {
		return d
	}
	keep := make(map[int32]struct{}, len(d.Cells))
	for _, c := range d.Cells {
		keep[int32(c)] = struct{}{}
	}
	mask := d.Segmentation.Clone()
	for i, v := range mask.Pix {
		if v == 0 {
			continue
		}
		if _, ok := keep[v]; !ok {
			mask.Pix[i] = 0
		}
	}
	out := d.clone()
	out.Segmentation = mask
	return out
}
