package dataset

import (
	"log"
	"sort"
)

// formatLabels normalizes raw cell-type labels to 1-based consecutive
// integers. A 0 anywhere shifts everything up by one; gaps in the value set
// trigger a sequential relabel. Both anomalies are logged and auto-corrected
// rather than rejected.
func formatLabels(raw []int) []int {
	formatted := make([]int, len(raw))
	copy(formatted, raw)

	unique := uniqueSorted(formatted)
	if len(unique) > 0 && unique[0] == 0 {
		log.Printf("WARN: found 0 in labels, reindexing")
		for i := range formatted {
			formatted[i]++
		}
		unique = uniqueSorted(formatted)
	}

	if len(unique) > 0 && (unique[0] != 1 || !consecutive(unique)) {
		log.Printf("WARN: labels are non-consecutive, relabeling")
		formatted = relabelSequential(formatted)
	}

	return formatted
}

// relabelSequential maps the distinct values of raw, in ascending order, to
// 1..k while preserving ties.
func relabelSequential(raw []int) []int {
	unique := uniqueSorted(raw)
	fw := make(map[int]int, len(unique))
	for i, v := range unique {
		fw[v] = i + 1
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = fw[v]
	}
	return out
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// consecutive reports whether a sorted value set has unit steps starting at
// its minimum.
func consecutive(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] != 1 {
			return false
		}
	}
	return true
}
