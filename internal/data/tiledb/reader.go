// Package tiledb provides minimal, read-only access to a dense TileDB
// array holding a per-cell intensity table.
//
// The expected layout is a dense 2D array with dimensions (cell, channel)
// and a float32 "value" attribute; channel names live in array metadata
// under the "channels" key as a comma-joined string.
package tiledb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported indicates this binary was built without TileDB support.
	ErrUnsupported = errors.New("tiledb support is not enabled in this build (build server with: go build -tags tiledb)")
)

// ResolveArrayURI accepts either:
//   - /path/to/.../intensity.tdb
//   - /path/to/.../dir  (parent directory)
//
// and returns the intensity.tdb path.
func ResolveArrayURI(arrayPath string) (string, error) {
	p := strings.TrimSpace(arrayPath)
	if p == "" {
		return "", errors.New("empty intensity_uri")
	}
	p = os.ExpandEnv(p)
	p = filepath.Clean(p)

	// If user points directly to the array
	if strings.HasSuffix(p, ".tdb") {
		return p, nil
	}
	// If user points to the parent dir
	return filepath.Join(p, "intensity.tdb"), nil
}
