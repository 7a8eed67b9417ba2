package dataset

import (
	"fmt"
	"log"
	"math/rand/v2"
	"sort"

	"github.com/cytogate/cytogate/pkg/colormap"
)

// AddLabel declares a new cell type and returns its allocated id. The first
// declaration requires a segmentation mask and an observation table to be
// present and initializes the assignment (every cell unlabeled).
func (d *Dataset) AddLabel(name, color string) (*Dataset, int, error) {
	if !d.HasSegmentation() {
		return nil, 0, validationf("no segmentation mask found")
	}
	if !d.HasObs() {
		return nil, 0, validationf("no observation table found")
	}

	id := 1
	if len(d.Labels) > 0 {
		id = d.Labels[len(d.Labels)-1].ID + 1
	}

	out := d.clone()
	out.Labels = append(append([]Label(nil), d.Labels...), Label{ID: id, Name: name, Color: color})
	if out.Assignment == nil {
		out.Assignment = make([]int, len(d.Cells))
	}
	return out, id, nil
}

// RemoveLabels deletes cell types from the registry and resets every cell
// assigned to them back to unlabeled. The gating graph in the attribute
// store is deliberately left untouched; see gating.RemoveLabelTypes for the
// strict variant.
func (d *Dataset) RemoveLabels(ids ...int) (*Dataset, error) {
	remove := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, err := d.Resolve(ByID(id)); err != nil {
			return nil, err
		}
		remove[id] = struct{}{}
	}

	out := d.clone()
	kept := make([]Label, 0, len(d.Labels))
	for _, l := range d.Labels {
		if _, ok := remove[l.ID]; !ok {
			kept = append(kept, l)
		}
	}
	out.Labels = kept

	assign := make([]int, len(d.Assignment))
	copy(assign, d.Assignment)
	for i, a := range assign {
		if _, ok := remove[a]; ok {
			assign[i] = 0
		}
	}
	out.Assignment = assign
	return out, nil
}

// RenameLabel sets a label's display name.
func (d *Dataset) RenameLabel(id int, name string) (*Dataset, error) {
	return d.updateLabel(id, func(l *Label) { l.Name = name })
}

// RecolorLabel sets a label's display color.
func (d *Dataset) RecolorLabel(id int, color string) (*Dataset, error) {
	return d.updateLabel(id, func(l *Label) { l.Color = color })
}

func (d *Dataset) updateLabel(id int, mutate func(*Label)) (*Dataset, error) {
	out := d.clone()
	out.Labels = append([]Label(nil), d.Labels...)
	for i := range out.Labels {
		if out.Labels[i].ID == id {
			mutate(&out.Labels[i])
			return out, nil
		}
	}
	return nil, notFoundf("label type", fmt.Sprint(id))
}

// LabelByID returns the registry entry for an id.
func (d *Dataset) LabelByID(id int) (Label, bool) {
	for _, l := range d.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// AddLabelsFromTable imports an external cell -> raw label mapping, e.g. the
// output of a marker-based classifier. Raw labels are normalized to 1..k
// (shifted when 0 appears, relabeled sequentially on gaps), colors and names
// are validated against k or synthesized (a random palette sample without
// replacement / "Cell type N"), the dataset is narrowed to the annotated
// cells, and the segmentation mask is pruned to match.
func (d *Dataset) AddLabelsFromTable(table map[int]int, colors, names []string) (*Dataset, error) {
	if len(table) == 0 {
		return nil, validationf("empty cell label table")
	}

	// Keep only cells present in the coordinate, in coordinate order.
	cells := make([]int, 0, len(table))
	for cell := range table {
		if _, ok := d.cellIndex(cell); ok {
			cells = append(cells, cell)
		}
	}
	if len(cells) == 0 {
		return nil, validationf("no cell in the label table matches the cell coordinate")
	}
	sort.Ints(cells)
	if dropped := len(table) - len(cells); dropped > 0 {
		log.Printf("WARN: %d labeled cells are not in the segmentation, dropping", dropped)
	}

	raw := make([]int, len(cells))
	for i, cell := range cells {
		v := table[cell]
		if v < 0 {
			return nil, validationf("labels must be >= 0, got %d for cell %d", v, cell)
		}
		raw[i] = v
	}
	formatted := formatLabels(raw)
	k := len(uniqueSorted(formatted))

	if colors != nil && len(colors) != k {
		return nil, validationf("got %d colors for %d label types", len(colors), k)
	}
	if names != nil && len(names) != k {
		return nil, validationf("got %d names for %d label types", len(names), k)
	}
	if colors == nil {
		colors = samplePalette(k)
	}
	if names == nil {
		names = make([]string, k)
		for i := range names {
			names[i] = fmt.Sprintf("Cell type %d", i+1)
		}
	}

	out, err := d.SelectCells(cells)
	if err != nil {
		return nil, err
	}
	out.Labels = make([]Label, k)
	for i := 0; i < k; i++ {
		out.Labels[i] = Label{ID: i + 1, Name: names[i], Color: colors[i]}
	}
	out.Assignment = formatted
	return out.PruneMaskToCells(), nil
}

// samplePalette draws n palette colors without replacement, cycling only
// when n exceeds the palette size.
func samplePalette(n int) []string {
	perm := rand.Perm(len(colormap.Palette))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = colormap.Palette[perm[i%len(perm)]]
	}
	return out
}
