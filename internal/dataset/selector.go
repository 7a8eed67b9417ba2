package dataset

import "fmt"

// LabelRef refers to a label either by its integer id or by its display
// name. The zero value refers to id 0 ("Unlabeled").
type LabelRef struct {
	byName bool
	id     int
	name   string
}

// ByID refers to a label by id.
func ByID(id int) LabelRef { return LabelRef{id: id} }

// ByName refers to a label by display name.
func ByName(name string) LabelRef { return LabelRef{byName: true, name: name} }

// String renders the reference for error messages and logs.
func (r LabelRef) String() string {
	if r.byName {
		return fmt.Sprintf("%q", r.name)
	}
	return fmt.Sprint(r.id)
}

// Resolve returns the label id a reference points at, validating membership
// in the registry. Names resolve to the first matching entry.
func (d *Dataset) Resolve(ref LabelRef) (int, error) {
	if ref.byName {
		for _, l := range d.Labels {
			if l.Name == ref.name {
				return l.ID, nil
			}
		}
		return 0, notFoundf("label type", fmt.Sprintf("%q", ref.name))
	}
	for _, l := range d.Labels {
		if l.ID == ref.id {
			return l.ID, nil
		}
	}
	return 0, notFoundf("label type", fmt.Sprint(ref.id))
}

type selectorKind int

const (
	selectorNone selectorKind = iota
	selectorID
	selectorName
	selectorRange
	selectorList
)

// Selector picks a subset of labels for Select/Deselect. It replaces the
// original runtime dispatch on int/str/slice/list indices with one
// constructor per index kind; float or otherwise malformed indices are
// unrepresentable by construction.
type Selector struct {
	kind  selectorKind
	id    int
	name  string
	start int
	stop  int
	list  []LabelRef
}

// SelectID selects a single label by id.
func SelectID(id int) Selector { return Selector{kind: selectorID, id: id} }

// SelectName selects a single label by display name.
func SelectName(name string) Selector { return Selector{kind: selectorName, name: name} }

// SelectRange selects label ids in [start, stop). Zero values take the
// defaults: start 1, stop the number of defined labels.
func SelectRange(start, stop int) Selector {
	return Selector{kind: selectorRange, start: start, stop: stop}
}

// SelectList selects a mixed list of id/name references.
func SelectList(refs ...LabelRef) Selector { return Selector{kind: selectorList, list: refs} }

// resolveSelector expands a selector into label ids. Range entries are taken
// as-is (the original slice semantics do not validate each id); id/name
// entries are validated against the registry.
func (d *Dataset) resolveSelector(sel Selector) ([]int, error) {
	switch sel.kind {
	case selectorID:
		id, err := d.Resolve(ByID(sel.id))
		if err != nil {
			return nil, err
		}
		return []int{id}, nil
	case selectorName:
		id, err := d.Resolve(ByName(sel.name))
		if err != nil {
			return nil, err
		}
		return []int{id}, nil
	case selectorRange:
		start, stop := sel.start, sel.stop
		if start == 0 {
			start = 1
		}
		if stop == 0 {
			stop = len(d.Labels)
		}
		ids := make([]int, 0, stop-start)
		for i := start; i < stop; i++ {
			ids = append(ids, i)
		}
		return ids, nil
	case selectorList:
		ids := make([]int, 0, len(sel.list))
		for _, ref := range sel.list {
			id, err := d.Resolve(ref)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, validationf("label selector must be an id, name, range, or list")
	}
}
