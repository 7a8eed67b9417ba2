// Package snapshot persists dataset snapshots as zstd-compressed JSON.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cytogate/cytogate/internal/dataset"
)

// FormatVersion identifies the on-disk envelope layout.
const FormatVersion = 1

type envelope struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Dataset *dataset.Dataset `json:"dataset"`
}

// Save writes a snapshot of the dataset to path, atomically via a temp file
// in the same directory.
func Save(path string, ds *dataset.Dataset) error {
	env := envelope{
		Version: FormatVersion,
		SavedAt: time.Now().UTC(),
		Dataset: ds,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	enc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// Load reads a snapshot from path.
func Load(path string) (*dataset.Dataset, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", env.Version)
	}
	if env.Dataset == nil {
		return nil, fmt.Errorf("snapshot has no dataset")
	}
	return env.Dataset, nil
}
