//go:build !tiledb

package tiledb

import (
	"fmt"
	"os"
)

// Reader is a stub when built without "-tags tiledb".
type Reader struct {
	arrayURI string
}

// NewReader creates an intensity reader (stub). It still resolves and
// validates the array path, so config issues can be caught early, but all
// read methods return ErrUnsupported.
func NewReader(arrayPath string) (*Reader, error) {
	uri, err := ResolveArrayURI(arrayPath)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(uri); statErr != nil {
		return nil, fmt.Errorf("intensity array not found at %s: %w", uri, statErr)
	}
	return &Reader{arrayURI: uri}, nil
}

func (r *Reader) Supported() bool { return false }

func (r *Reader) ArrayURI() string { return r.arrayURI }

// Channels returns the channel names recorded in array metadata.
func (r *Reader) Channels() ([]string, error) {
	return nil, ErrUnsupported
}

// ReadTable reads the full dense cells x channels table together with the
// cell ids covering the non-empty domain.
func (r *Reader) ReadTable() (cells []int, channels []string, table [][]float64, err error) {
	return nil, nil, nil, ErrUnsupported
}

// ReadRows reads the intensity rows of the given cell ids.
func (r *Reader) ReadRows(cellIDs []int) (channels []string, table [][]float64, err error) {
	return nil, nil, ErrUnsupported
}
