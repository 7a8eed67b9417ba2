package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Data.SnapshotPath == "" {
		t.Error("expected default snapshot path")
	}
	if cfg.Data.IntensityKey != "intensity" {
		t.Errorf("expected default intensity key, got %q", cfg.Data.IntensityKey)
	}
	if cfg.Cache.RenderSizeMB != 256 {
		t.Errorf("expected default render cache size 256, got %d", cfg.Cache.RenderSizeMB)
	}
	if cfg.Render.DefaultColormap != "viridis" {
		t.Errorf("expected default colormap viridis, got %q", cfg.Render.DefaultColormap)
	}
	if cfg.Render.Alpha != 0.6 {
		t.Errorf("expected default alpha 0.6, got %f", cfg.Render.Alpha)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := `
server:
  port: 9000
data:
  snapshot_path: /data/run42.cgz
render:
  alpha: 0.3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Data.SnapshotPath != "/data/run42.cgz" {
		t.Errorf("snapshot path = %q", cfg.Data.SnapshotPath)
	}
	if cfg.Render.Alpha != 0.3 {
		t.Errorf("alpha = %f, want 0.3", cfg.Render.Alpha)
	}
	// Omitted fields fall back to defaults.
	if cfg.Data.IntensityKey != "intensity" {
		t.Errorf("intensity key = %q, want default", cfg.Data.IntensityKey)
	}
	if cfg.Cache.QueryCacheSize != 1000 {
		t.Errorf("query cache size = %d, want default", cfg.Cache.QueryCacheSize)
	}
	if cfg.Audit.SQLitePath == "" {
		t.Error("audit sqlite path should default")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
