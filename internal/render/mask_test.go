package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/cytogate/cytogate/internal/dataset"
)

func renderTestDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	// Two 2x2 cells side by side in a 4x2 mask.
	mask := &dataset.Mask{Width: 4, Height: 2, Pix: []int32{
		1, 1, 2, 2,
		1, 1, 2, 2,
	}}
	ds := dataset.NewFromMask(mask, []string{"CD3"})
	ds, err := ds.WithObs("area", []float64{4, 4})
	if err != nil {
		t.Fatalf("WithObs failed: %v", err)
	}
	ds, err = ds.WithImage("CD3", []float64{0, 1, 2, 3, 4, 5, 6, 7})
	if err != nil {
		t.Fatalf("WithImage failed: %v", err)
	}
	ds, _, err = ds.AddLabel("T cells", "#FF0000")
	if err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}
	ds, err = ds.WithAssignment([]int{1}, 1)
	if err != nil {
		t.Fatalf("WithAssignment failed: %v", err)
	}
	return ds
}

func decodePNG(t *testing.T, data []byte) (width, height int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRenderLabels(t *testing.T) {
	ds := renderTestDataset(t)
	r := NewRenderer(Config{Alpha: 0.6, AlphaBoundary: 1.0, DefaultColormap: "viridis"})

	data, err := r.RenderLabels(ds)
	if err != nil {
		t.Fatalf("RenderLabels failed: %v", err)
	}
	w, h := decodePNG(t, data)
	if w != 4 || h != 2 {
		t.Errorf("rendered %dx%d, want 4x2", w, h)
	}

	img, _ := png.Decode(bytes.NewReader(data))
	// Cell 1 is labeled red; cell 2 is unlabeled and stays black.
	r1, _, _, _ := img.At(0, 0).RGBA()
	if r1 == 0 {
		t.Error("labeled cell pixel is black")
	}
	r2, g2, b2, _ := img.At(2, 0).RGBA()
	if r2 != 0 || g2 != 0 || b2 != 0 {
		t.Error("unlabeled cell pixel is colored")
	}
}

func TestRenderLabelsRequiresMask(t *testing.T) {
	r := NewRenderer(Config{Alpha: 0.6, AlphaBoundary: 1.0})
	if _, err := r.RenderLabels(dataset.New([]int{1}, []string{"CD3"})); err == nil {
		t.Error("expected error without segmentation mask")
	}
}

func TestRenderLabelsBadColor(t *testing.T) {
	ds := renderTestDataset(t)
	ds, err := ds.RecolorLabel(1, "red")
	if err != nil {
		t.Fatalf("RecolorLabel failed: %v", err)
	}
	r := NewRenderer(Config{Alpha: 0.6, AlphaBoundary: 1.0})
	if _, err := r.RenderLabels(ds); err == nil {
		t.Error("expected error for unparsable label color")
	}
}

func TestRenderSegmentation(t *testing.T) {
	ds := renderTestDataset(t)
	r := NewRenderer(Config{Alpha: 0.6, AlphaBoundary: 1.0})

	data, err := r.RenderSegmentation(ds)
	if err != nil {
		t.Fatalf("RenderSegmentation failed: %v", err)
	}
	if w, h := decodePNG(t, data); w != 4 || h != 2 {
		t.Errorf("rendered %dx%d, want 4x2", w, h)
	}
}

func TestRenderChannel(t *testing.T) {
	ds := renderTestDataset(t)
	r := NewRenderer(Config{Alpha: 0.6, AlphaBoundary: 1.0, DefaultColormap: "viridis"})

	data, err := r.RenderChannel(ds, "CD3", "plasma")
	if err != nil {
		t.Fatalf("RenderChannel failed: %v", err)
	}
	if w, h := decodePNG(t, data); w != 4 || h != 2 {
		t.Errorf("rendered %dx%d, want 4x2", w, h)
	}

	// Unknown colormap falls back to the default.
	if _, err := r.RenderChannel(ds, "CD3", "nope"); err != nil {
		t.Errorf("fallback colormap failed: %v", err)
	}
	if _, err := r.RenderChannel(ds, "CD99", "viridis"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestIsBoundary(t *testing.T) {
	mask := &dataset.Mask{Width: 4, Height: 2, Pix: []int32{
		1, 1, 2, 2,
		1, 1, 2, 2,
	}}
	// Pixel (1,0) touches cell 2 to its right.
	if !isBoundary(mask, 1, 0) {
		t.Error("(1,0) should be a boundary pixel")
	}
	// Pixel (0,0) touches only cell 1 and the image edge.
	if isBoundary(mask, 0, 0) {
		t.Error("(0,0) should not be a boundary pixel")
	}
}
