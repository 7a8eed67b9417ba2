// Package intensity quantifies per-cell channel intensities from a
// segmentation mask and image planes. The reducers mirror the usual
// cytometry transforms (mean, median, arcsinh-stabilized variants).
package intensity

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cytogate/cytogate/internal/dataset"
)

// Reducer collapses the pixel intensities of one cell region to a scalar.
type Reducer func(values []float64) float64

// Sum is the summed region intensity.
func Sum(values []float64) float64 { return floats.Sum(values) }

// Mean is the mean region intensity.
func Mean(values []float64) float64 { return stat.Mean(values, nil) }

// Median is the median region intensity.
func Median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// ArcsinhMean is the arcsinh-transformed mean with the given cofactor.
func ArcsinhMean(cofactor float64) Reducer {
	return func(values []float64) float64 {
		return math.Asinh(stat.Mean(values, nil) / cofactor)
	}
}

// ArcsinhMedian is the arcsinh-transformed median with the given cofactor.
func ArcsinhMedian(cofactor float64) Reducer {
	return func(values []float64) float64 {
		return math.Asinh(Median(values) / cofactor)
	}
}

// ArcsinhSum is the arcsinh-transformed sum with the given cofactor.
func ArcsinhSum(cofactor float64) Reducer {
	return func(values []float64) float64 {
		return math.Asinh(floats.Sum(values) / cofactor)
	}
}

// PercentPositive is the fraction of region pixels with intensity above 0.
func PercentPositive(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	positive := 0
	for _, v := range values {
		if v > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(values))
}

// Quantify reduces one image plane over the mask regions of the given cells.
// The result aligns with cells; cells without any mask pixel reduce over an
// empty region and yield 0.
func Quantify(mask *dataset.Mask, plane []float64, cells []int, reduce Reducer) ([]float64, error) {
	if len(plane) != mask.Width*mask.Height {
		return nil, fmt.Errorf("image plane has %d pixels, mask has %d", len(plane), mask.Width*mask.Height)
	}

	regions := make(map[int][]float64, len(cells))
	want := make(map[int]struct{}, len(cells))
	for _, c := range cells {
		want[c] = struct{}{}
	}
	for i, id := range mask.Pix {
		if id == 0 {
			continue
		}
		if _, ok := want[int(id)]; ok {
			regions[int(id)] = append(regions[int(id)], plane[i])
		}
	}

	out := make([]float64, len(cells))
	for i, c := range cells {
		region := regions[c]
		if len(region) == 0 {
			continue
		}
		out[i] = reduce(region)
	}
	return out, nil
}

// QuantifyDataset builds a full cells x channels intensity table from the
// dataset's mask and image planes and attaches it under the given key.
func QuantifyDataset(ds *dataset.Dataset, key string, reduce Reducer) (*dataset.Dataset, error) {
	if !ds.HasSegmentation() {
		return nil, fmt.Errorf("no segmentation mask found")
	}
	table := make([][]float64, len(ds.Cells))
	for i := range table {
		table[i] = make([]float64, len(ds.Channels))
	}
	for col, channel := range ds.Channels {
		plane, ok := ds.Image[channel]
		if !ok {
			return nil, fmt.Errorf("image plane not found for channel %s", channel)
		}
		values, err := Quantify(ds.Segmentation, plane, ds.Cells, reduce)
		if err != nil {
			return nil, fmt.Errorf("failed to quantify channel %s: %w", channel, err)
		}
		for i, v := range values {
			table[i][col] = v
		}
	}
	return ds.WithIntensity(key, table)
}
