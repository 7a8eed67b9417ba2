// Package config handles configuration loading for the cytogate server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	Audit  AuditConfig  `yaml:"audit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig contains data source settings.
type DataConfig struct {
	// SnapshotPath is the zstd-compressed container snapshot to serve.
	SnapshotPath string `yaml:"snapshot_path"`
	// IntensityURI optionally points at a dense TileDB array holding a
	// cells x channels intensity table (requires a build with -tags tiledb).
	IntensityURI string `yaml:"intensity_uri"`
	// IntensityKey is the layer key the TileDB table is attached under.
	IntensityKey string `yaml:"intensity_key"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	RenderSizeMB     int `yaml:"render_size_mb"`
	RenderTTLMinutes int `yaml:"render_ttl_minutes"`
	QueryCacheSize   int `yaml:"query_cache_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Alpha           float64 `yaml:"alpha"`
	AlphaBoundary   float64 `yaml:"alpha_boundary"`
	DefaultColormap string  `yaml:"default_colormap"`
}

// AuditConfig contains gate-event journal settings.
type AuditConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			SnapshotPath: "./data/container.cgz",
			IntensityKey: "intensity",
		},
		Cache: CacheConfig{
			RenderSizeMB:     256,
			RenderTTLMinutes: 10,
			QueryCacheSize:   1000,
		},
		Render: RenderConfig{
			Alpha:           0.6,
			AlphaBoundary:   1.0,
			DefaultColormap: "viridis",
		},
		Audit: AuditConfig{
			SQLitePath: "./data/gate_events.sqlite",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.SnapshotPath == "" {
		cfg.Data.SnapshotPath = defaults.Data.SnapshotPath
	}
	if cfg.Data.IntensityKey == "" {
		cfg.Data.IntensityKey = defaults.Data.IntensityKey
	}
	if cfg.Cache.RenderSizeMB == 0 {
		cfg.Cache.RenderSizeMB = defaults.Cache.RenderSizeMB
	}
	if cfg.Cache.RenderTTLMinutes == 0 {
		cfg.Cache.RenderTTLMinutes = defaults.Cache.RenderTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Render.Alpha == 0 {
		cfg.Render.Alpha = defaults.Render.Alpha
	}
	if cfg.Render.AlphaBoundary == 0 {
		cfg.Render.AlphaBoundary = defaults.Render.AlphaBoundary
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = defaults.Audit.SQLitePath
	}
}
