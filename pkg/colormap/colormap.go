// Package colormap provides color schemes for label and intensity rendering.
package colormap

import (
	"fmt"
	"image/color"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// LinearColormap is a linear interpolation colormap.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// AtIndex returns color at index i (wraps around).
func (c LinearColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Viridis colormap (matplotlib viridis)
var Viridis = LinearColormap{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Plasma colormap
var Plasma = LinearColormap{
	colors: []color.RGBA{
		{13, 8, 135, 255},
		{75, 3, 161, 255},
		{125, 3, 168, 255},
		{168, 34, 150, 255},
		{203, 70, 121, 255},
		{229, 107, 93, 255},
		{248, 148, 65, 255},
		{253, 195, 40, 255},
		{240, 249, 33, 255},
	},
}

// ParseHex parses a "#RRGGBB" color string.
func ParseHex(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color: %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Palette is the categorical palette used to color cell-type labels when no
// explicit colors are supplied: 100 visually distinct hex colors.
var Palette = []string{
	"#FFFF00", "#1CE6FF", "#FF34FF", "#FF4A46", "#008941",
	"#006FA6", "#A30059", "#FFDBE5", "#7A4900", "#0000A6",
	"#63FFAC", "#B79762", "#004D43", "#8FB0FF", "#997D87",
	"#5A0007", "#809693", "#6A3A4C", "#1B4400", "#4FC601",
	"#3B5DFF", "#4A3B53", "#FF2F80", "#61615A", "#BA0900",
	"#6B7900", "#00C2A0", "#FFAA92", "#FF90C9", "#B903AA",
	"#D16100", "#DDEFFF", "#000035", "#7B4F4B", "#A1C299",
	"#0AA6D8", "#013349", "#00846F", "#372101", "#FFB500",
	"#C2FFED", "#A079BF", "#CC0744", "#C0B9B2", "#C2FF99",
	"#00489C", "#6F0062", "#0CBD66", "#EEC3FF", "#456D75",
	"#B77B68", "#7A87A1", "#788D66", "#885578", "#FAD09F",
	"#FF8A9A", "#D157A0", "#BEC459", "#456648", "#0086ED",
	"#886F4C", "#34362D", "#B4A8BD", "#00A6AA", "#452C2C",
	"#636375", "#A3C8C9", "#FF913F", "#938A81", "#575329",
	"#00FECF", "#B05B6F", "#8CD0FF", "#3B9700", "#04F757",
	"#C8A1A1", "#1E6E00", "#7900D7", "#A77500", "#6367A9",
	"#A05837", "#6B002C", "#772600", "#D790FF", "#9B9700",
	"#549E79", "#FFF69F", "#72418F", "#BC23FF", "#99ADC0",
	"#3A2465", "#922329", "#5B4534", "#FDE8DC", "#404E55",
	"#0089A3", "#CB7E98", "#A4E804", "#324E72", "#6A488E",
}

// PaletteColor returns the palette entry at index i (wraps around).
func PaletteColor(i int) string {
	return Palette[i%len(Palette)]
}
