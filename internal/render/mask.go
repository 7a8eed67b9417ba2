// Package render rasterizes label masks and channel heatmaps using
// fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/cytogate/cytogate/internal/dataset"
	"github.com/cytogate/cytogate/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	// Alpha blends label fill over the background; AlphaBoundary applies to
	// cell boundary pixels (inner boundaries).
	Alpha           float64
	AlphaBoundary   float64
	DefaultColormap string
}

// Renderer renders PNGs from a dataset snapshot.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
	colormaps  map[string]colormap.Colormap
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	r := &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
		colormaps: make(map[string]colormap.Colormap),
	}
	r.colormaps["viridis"] = colormap.Viridis
	r.colormaps["plasma"] = colormap.Plasma
	return r
}

// RenderLabels renders the segmentation mask colored by cell-type label.
// Unlabeled and background pixels stay black; boundary pixels get the
// boundary alpha for visual separation.
func (r *Renderer) RenderLabels(ds *dataset.Dataset) ([]byte, error) {
	mask := ds.Segmentation
	if mask == nil {
		return nil, fmt.Errorf("no segmentation mask found")
	}

	colors := make(map[int32]color.RGBA)
	for _, l := range ds.Labels {
		c, err := colormap.ParseHex(l.Color)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", l.ID, err)
		}
		for _, cell := range ds.CellsFor([]int{l.ID}, false) {
			colors[int32(cell)] = c
		}
	}

	dc := gg.NewContext(mask.Width, mask.Height)
	dc.SetColor(color.Black)
	dc.Clear()

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			id := mask.At(x, y)
			if id == 0 {
				continue
			}
			c, ok := colors[id]
			if !ok {
				continue
			}
			alpha := r.config.Alpha
			if isBoundary(mask, x, y) {
				alpha = r.config.AlphaBoundary
			}
			dc.SetRGBA(
				float64(c.R)/255*alpha,
				float64(c.G)/255*alpha,
				float64(c.B)/255*alpha,
				1,
			)
			dc.SetPixel(x, y)
		}
	}
	return r.encodeContext(dc)
}

// RenderSegmentation renders every cell of the mask in white, boundaries
// emphasized, without label coloring.
func (r *Renderer) RenderSegmentation(ds *dataset.Dataset) ([]byte, error) {
	mask := ds.Segmentation
	if mask == nil {
		return nil, fmt.Errorf("no segmentation mask found")
	}

	dc := gg.NewContext(mask.Width, mask.Height)
	dc.SetColor(color.Black)
	dc.Clear()

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) == 0 {
				continue
			}
			alpha := r.config.Alpha
			if isBoundary(mask, x, y) {
				alpha = r.config.AlphaBoundary
			}
			dc.SetRGBA(alpha, alpha, alpha, 1)
			dc.SetPixel(x, y)
		}
	}
	return r.encodeContext(dc)
}

// RenderChannel renders one image plane as a heatmap, min-max normalized.
func (r *Renderer) RenderChannel(ds *dataset.Dataset, channel, colormapName string) ([]byte, error) {
	mask := ds.Segmentation
	if mask == nil {
		return nil, fmt.Errorf("no segmentation mask found")
	}
	plane, ok := ds.Image[channel]
	if !ok {
		return nil, fmt.Errorf("image plane not found for channel %s", channel)
	}

	cmap, ok := r.colormaps[colormapName]
	if !ok {
		cmap = r.colormaps[r.config.DefaultColormap]
		if cmap == nil {
			cmap = colormap.Viridis
		}
	}

	lo, hi := plane[0], plane[0]
	for _, v := range plane {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	dc := gg.NewContext(mask.Width, mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			v := plane[y*mask.Width+x]
			dc.SetColor(cmap.At((v - lo) / span))
			dc.SetPixel(x, y)
		}
	}
	return r.encodeContext(dc)
}

// isBoundary reports whether a non-background pixel touches a pixel of a
// different cell id (inner boundary).
func isBoundary(mask *dataset.Mask, x, y int) bool {
	id := mask.At(x, y)
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || nx >= mask.Width || ny < 0 || ny >= mask.Height {
			continue
		}
		if mask.At(nx, ny) != id {
			return true
		}
	}
	return false
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
