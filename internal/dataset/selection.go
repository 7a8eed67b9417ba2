package dataset

import "sort"

// CellsFor returns the sorted cell ids currently assigned to any of the
// given label ids. With includeUnlabeled, cells assigned to 0 are included
// as well.
func (d *Dataset) CellsFor(ids []int, includeUnlabeled bool) []int {
	want := make(map[int]struct{}, len(ids)+1)
	for _, id := range ids {
		want[id] = struct{}{}
	}
	if includeUnlabeled {
		want[0] = struct{}{}
	}

	var cells []int
	for i, cell := range d.Cells {
		assigned := 0
		if d.Assignment != nil {
			assigned = d.Assignment[i]
		}
		if _, ok := want[assigned]; ok {
			cells = append(cells, cell)
		}
	}
	sort.Ints(cells)
	return cells
}

// FilterByObs narrows the cell dimension to cells whose value for an
// observation feature satisfies the predicate.
func (d *Dataset) FilterByObs(feature string, pred func(float64) bool) (*Dataset, error) {
	values, ok := d.Obs[feature]
	if !ok {
		return nil, notFoundf("obs feature", feature)
	}
	var cells []int
	for i, v := range values {
		if pred(v) {
			cells = append(cells, d.Cells[i])
		}
	}
	return d.SelectCells(cells)
}

// FilterByIntensity narrows the cell dimension to cells whose intensity for
// one channel of a named intensity table satisfies the predicate.
func (d *Dataset) FilterByIntensity(key, channel string, pred func(float64) bool) (*Dataset, error) {
	table, ok := d.Intensity[key]
	if !ok {
		return nil, notFoundf("intensity layer", key)
	}
	col, err := d.channelIndex(channel)
	if err != nil {
		return nil, err
	}
	var cells []int
	for i, row := range table {
		if pred(row[col]) {
			cells = append(cells, d.Cells[i])
		}
	}
	return d.SelectCells(cells)
}

func (d *Dataset) channelIndex(channel string) (int, error) {
	for i, c := range d.Channels {
		if c == channel {
			return i, nil
		}
	}
	return 0, notFoundf("channel", channel)
}

// Select narrows the label and cell dimensions jointly to the labels picked
// by the selector: the registry keeps only the selected entries and the cell
// coordinate keeps only cells assigned to one of them.
func (d *Dataset) Select(sel Selector) (*Dataset, error) {
	ids, err := d.resolveSelector(sel)
	if err != nil {
		return nil, err
	}
	return d.narrowToLabels(ids)
}

// Deselect is the complement of Select over the full 1..max-label-id range.
func (d *Dataset) Deselect(sel Selector) (*Dataset, error) {
	ids, err := d.resolveSelector(sel)
	if err != nil {
		return nil, err
	}
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	maxID := 0
	for _, l := range d.Labels {
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	var inv []int
	for id := 1; id <= maxID; id++ {
		if _, ok := drop[id]; !ok {
			inv = append(inv, id)
		}
	}
	return d.narrowToLabels(inv)
}

func (d *Dataset) narrowToLabels(ids []int) (*Dataset, error) {
	keep := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out, err := d.SelectCells(d.CellsFor(ids, false))
	if err != nil {
		return nil, err
	}
	labels := make([]Label, 0, len(ids))
	for _, l := range d.Labels {
		if _, ok := keep[l.ID]; ok {
			labels = append(labels, l)
		}
	}
	out.Labels = labels
	return out, nil
}
