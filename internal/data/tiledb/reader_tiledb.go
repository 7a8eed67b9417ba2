//go:build tiledb

package tiledb

import (
	"fmt"
	"os"
	"sort"
	"strings"

	tdb "github.com/TileDB-Inc/TileDB-Go"
)

// Reader provides dense intensity-table reads via TileDB.
type Reader struct {
	arrayURI string
	ctx      *tdb.Context
}

func NewReader(arrayPath string) (*Reader, error) {
	uri, err := ResolveArrayURI(arrayPath)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(uri); statErr != nil {
		return nil, fmt.Errorf("intensity array not found at %s: %w", uri, statErr)
	}

	ctx, err := tdb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TileDB context: %w", err)
	}

	return &Reader{
		arrayURI: uri,
		ctx:      ctx,
	}, nil
}

func (r *Reader) Supported() bool { return true }

func (r *Reader) ArrayURI() string { return r.arrayURI }

// Channels returns the channel names recorded in array metadata under the
// "channels" key (comma-joined).
func (r *Reader) Channels() ([]string, error) {
	arr, err := r.open()
	if err != nil {
		return nil, err
	}
	defer arr.Free()
	defer arr.Close()
	return readChannels(arr)
}

// ReadTable reads the full dense cells x channels table together with the
// cell ids covering the non-empty domain.
func (r *Reader) ReadTable() (cells []int, channels []string, table [][]float64, err error) {
	arr, err := r.open()
	if err != nil {
		return nil, nil, nil, err
	}
	defer arr.Free()
	defer arr.Close()

	minCell, maxCell, err := dimBounds(arr, "cell")
	if err != nil {
		return nil, nil, nil, err
	}
	ids := make([]int, 0, maxCell-minCell+1)
	for c := minCell; c <= maxCell; c++ {
		ids = append(ids, int(c))
	}
	channels, table, err = r.readRows(arr, ids)
	if err != nil {
		return nil, nil, nil, err
	}
	return ids, channels, table, nil
}

// ReadRows reads the intensity rows of the given cell ids. Rows align with
// cellIDs; ids outside the array's non-empty domain are an error.
func (r *Reader) ReadRows(cellIDs []int) (channels []string, table [][]float64, err error) {
	if len(cellIDs) == 0 {
		return nil, nil, nil
	}
	arr, err := r.open()
	if err != nil {
		return nil, nil, err
	}
	defer arr.Free()
	defer arr.Close()
	return r.readRows(arr, cellIDs)
}

func (r *Reader) open() (*tdb.Array, error) {
	arr, err := tdb.NewArray(r.ctx, r.arrayURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open intensity array (%s): %w", r.arrayURI, err)
	}
	if err := arr.Open(tdb.TILEDB_READ); err != nil {
		arr.Free()
		return nil, fmt.Errorf("failed to open intensity array for read: %w", err)
	}
	return arr, nil
}

func (r *Reader) readRows(arr *tdb.Array, cellIDs []int) ([]string, [][]float64, error) {
	channels, err := readChannels(arr)
	if err != nil {
		return nil, nil, err
	}
	minCh, maxCh, err := dimBounds(arr, "channel")
	if err != nil {
		return nil, nil, err
	}
	ncols := int(maxCh-minCh) + 1
	if len(channels) != ncols {
		return nil, nil, fmt.Errorf("array has %d channel columns but metadata names %d channels", ncols, len(channels))
	}

	rowOf := make(map[int64]int, len(cellIDs))
	for i, c := range cellIDs {
		rowOf[int64(c)] = i
	}

	// Read in contiguous cell-id chunks so the buffer stays bounded even
	// for large mosaics.
	sorted := append([]int(nil), cellIDs...)
	sort.Ints(sorted)

	table := make([][]float64, len(cellIDs))
	const chunkRows = 4096
	buf := make([]float32, chunkRows*ncols)

	for start := 0; start < len(sorted); start += chunkRows {
		end := start + chunkRows
		if end > len(sorted) {
			end = len(sorted)
		}
		lo, hi := int64(sorted[start]), int64(sorted[end-1])

		sub, err := arr.NewSubarray()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create subarray: %w", err)
		}
		if err := sub.AddRangeByName("cell", tdb.MakeRange[int64](lo, hi)); err != nil {
			sub.Free()
			return nil, nil, fmt.Errorf("failed to add cell range: %w", err)
		}
		if err := sub.AddRangeByName("channel", tdb.MakeRange[int64](minCh, maxCh)); err != nil {
			sub.Free()
			return nil, nil, fmt.Errorf("failed to add channel range: %w", err)
		}

		q, err := tdb.NewQuery(r.ctx, arr)
		if err != nil {
			sub.Free()
			return nil, nil, fmt.Errorf("failed to create query: %w", err)
		}
		if err := q.SetSubarray(sub); err != nil {
			q.Free()
			sub.Free()
			return nil, nil, fmt.Errorf("failed to set subarray: %w", err)
		}
		if err := q.SetLayout(tdb.TILEDB_ROW_MAJOR); err != nil {
			q.Free()
			sub.Free()
			return nil, nil, fmt.Errorf("failed to set query layout: %w", err)
		}

		span := int(hi-lo) + 1
		need := span * ncols
		if need > len(buf) {
			buf = make([]float32, need)
		}
		out := buf[:need]
		if _, err := q.SetDataBuffer("value", out); err != nil {
			q.Free()
			sub.Free()
			return nil, nil, fmt.Errorf("failed to set buffer value: %w", err)
		}

		if err := q.Submit(); err != nil {
			q.Free()
			sub.Free()
			return nil, nil, fmt.Errorf("query submit failed: %w", err)
		}
		status, err := q.Status()
		q.Free()
		sub.Free()
		if err != nil {
			return nil, nil, fmt.Errorf("query status failed: %w", err)
		}
		if status != tdb.TILEDB_COMPLETED {
			return nil, nil, fmt.Errorf("unexpected query status: %v", status)
		}

		for cid := lo; cid <= hi; cid++ {
			row, ok := rowOf[cid]
			if !ok {
				continue
			}
			off := int(cid-lo) * ncols
			vals := make([]float64, ncols)
			for j := 0; j < ncols; j++ {
				vals[j] = float64(out[off+j])
			}
			table[row] = vals
		}
	}

	for i, row := range table {
		if row == nil {
			return nil, nil, fmt.Errorf("cell %d not covered by intensity array", cellIDs[i])
		}
	}
	return channels, table, nil
}

func readChannels(arr *tdb.Array) ([]string, error) {
	_, _, value, err := arr.GetMetadata("channels")
	if err != nil {
		return nil, fmt.Errorf("failed to read channels metadata: %w", err)
	}
	var joined string
	switch v := value.(type) {
	case string:
		joined = v
	case []byte:
		joined = string(v)
	default:
		return nil, fmt.Errorf("unsupported channels metadata type %T", value)
	}
	joined = strings.TrimSpace(joined)
	if joined == "" {
		return nil, fmt.Errorf("channels metadata is empty")
	}
	return strings.Split(joined, ","), nil
}

func dimBounds(arr *tdb.Array, dim string) (int64, int64, error) {
	ned, isEmpty, err := arr.NonEmptyDomainFromName(dim)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get %s non-empty domain: %w", dim, err)
	}
	if isEmpty || ned == nil {
		return 0, 0, fmt.Errorf("intensity array is empty")
	}
	switch v := ned.Bounds.(type) {
	case []int64:
		if len(v) >= 2 {
			return v[0], v[1], nil
		}
	case []int32:
		if len(v) >= 2 {
			return int64(v[0]), int64(v[1]), nil
		}
	}
	return 0, 0, fmt.Errorf("unsupported bounds type for %s non-empty domain", dim)
}
