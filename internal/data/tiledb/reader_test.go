package tiledb

import (
	"path/filepath"
	"testing"
)

func TestResolveArrayURI(t *testing.T) {
	uri, err := ResolveArrayURI("/data/run42/intensity.tdb")
	if err != nil {
		t.Fatalf("ResolveArrayURI failed: %v", err)
	}
	if uri != "/data/run42/intensity.tdb" {
		t.Errorf("uri = %q", uri)
	}

	uri, err = ResolveArrayURI("/data/run42")
	if err != nil {
		t.Fatalf("ResolveArrayURI failed: %v", err)
	}
	if uri != filepath.Join("/data/run42", "intensity.tdb") {
		t.Errorf("uri = %q", uri)
	}

	if _, err := ResolveArrayURI("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewReaderMissingArray(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing array path")
	}
}
