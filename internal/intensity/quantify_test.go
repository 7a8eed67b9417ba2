package intensity

import (
	"math"
	"reflect"
	"testing"

	"github.com/cytogate/cytogate/internal/dataset"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReducers(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	if got := Sum(values); !almostEqual(got, 10) {
		t.Errorf("Sum = %f", got)
	}
	if got := Mean(values); !almostEqual(got, 2.5) {
		t.Errorf("Mean = %f", got)
	}
	if got := Median([]float64{3, 1, 2}); !almostEqual(got, 2) {
		t.Errorf("Median = %f", got)
	}
	if got := ArcsinhMean(1)(values); !almostEqual(got, math.Asinh(2.5)) {
		t.Errorf("ArcsinhMean = %f", got)
	}
	if got := ArcsinhSum(5)(values); !almostEqual(got, math.Asinh(2)) {
		t.Errorf("ArcsinhSum = %f", got)
	}
	if got := PercentPositive([]float64{0, 1, 0, 2}); !almostEqual(got, 0.5) {
		t.Errorf("PercentPositive = %f", got)
	}
	if got := PercentPositive(nil); got != 0 {
		t.Errorf("PercentPositive(nil) = %f", got)
	}
}

func TestQuantify(t *testing.T) {
	mask := &dataset.Mask{Width: 4, Height: 2, Pix: []int32{
		1, 1, 2, 2,
		1, 1, 0, 0,
	}}
	plane := []float64{
		1, 3, 10, 20,
		5, 7, 99, 99, // background pixels are ignored
	}

	got, err := Quantify(mask, plane, []int{1, 2, 3}, Mean)
	if err != nil {
		t.Fatalf("Quantify failed: %v", err)
	}
	// Cell 1 covers {1,3,5,7}, cell 2 covers {10,20}, cell 3 has no pixels.
	want := []float64{4, 15, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Quantify = %v, want %v", got, want)
	}

	if _, err := Quantify(mask, []float64{1, 2}, []int{1}, Mean); err == nil {
		t.Error("expected error for plane size mismatch")
	}
}

func TestQuantifyDataset(t *testing.T) {
	mask := &dataset.Mask{Width: 4, Height: 2, Pix: []int32{
		1, 1, 2, 2,
		1, 1, 2, 2,
	}}
	ds := dataset.NewFromMask(mask, []string{"CD3", "CD8"})
	var err error
	ds, err = ds.WithImage("CD3", []float64{1, 1, 8, 8, 1, 1, 8, 8})
	if err != nil {
		t.Fatalf("WithImage failed: %v", err)
	}
	ds, err = ds.WithImage("CD8", []float64{2, 2, 0, 0, 2, 2, 0, 0})
	if err != nil {
		t.Fatalf("WithImage failed: %v", err)
	}

	out, err := QuantifyDataset(ds, "mean", Mean)
	if err != nil {
		t.Fatalf("QuantifyDataset failed: %v", err)
	}
	table := out.Intensity["mean"]
	want := [][]float64{{1, 2}, {8, 0}}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("table = %v, want %v", table, want)
	}

	// Missing plane for a declared channel is an error.
	ds2 := dataset.NewFromMask(mask, []string{"CD3", "MISSING"})
	ds2, _ = ds2.WithImage("CD3", []float64{1, 1, 8, 8, 1, 1, 8, 8})
	if _, err := QuantifyDataset(ds2, "mean", Mean); err == nil {
		t.Error("expected error for missing image plane")
	}
}
