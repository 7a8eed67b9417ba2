// Package main is the entry point for the cytogate server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cytogate/cytogate/internal/api"
	"github.com/cytogate/cytogate/internal/audit"
	"github.com/cytogate/cytogate/internal/cache"
	"github.com/cytogate/cytogate/internal/config"
	"github.com/cytogate/cytogate/internal/data/snapshot"
	"github.com/cytogate/cytogate/internal/data/tiledb"
	"github.com/cytogate/cytogate/internal/gating"
	"github.com/cytogate/cytogate/internal/render"
	"github.com/cytogate/cytogate/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	schemePath := flag.String("scheme", "", "Optional gating scheme to apply at startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting cytogate server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Load the dataset snapshot
	ds, err := snapshot.Load(cfg.Data.SnapshotPath)
	if err != nil {
		log.Fatalf("Failed to load dataset snapshot: %v", err)
	}
	log.Printf("Loaded snapshot from %s: %d cells, %d channels, %d labels",
		cfg.Data.SnapshotPath, ds.NumCells(), len(ds.Channels), len(ds.Labels))

	// Optionally attach an intensity table from a TileDB array
	if cfg.Data.IntensityURI != "" {
		reader, err := tiledb.NewReader(cfg.Data.IntensityURI)
		if err != nil {
			log.Fatalf("Failed to initialize TileDB intensity reader: %v", err)
		}
		if !reader.Supported() {
			log.Printf("TileDB intensity array configured but not supported in this build: %s", reader.ArrayURI())
		} else {
			channels, table, err := reader.ReadRows(ds.Cells)
			if err != nil {
				log.Fatalf("Failed to read intensity array: %v", err)
			}
			if len(channels) != len(ds.Channels) {
				log.Fatalf("Intensity array has %d channels, snapshot has %d", len(channels), len(ds.Channels))
			}
			ds, err = ds.WithIntensity(cfg.Data.IntensityKey, table)
			if err != nil {
				log.Fatalf("Failed to attach intensity table: %v", err)
			}
			log.Printf("Attached intensity table %q from %s", cfg.Data.IntensityKey, reader.ArrayURI())
		}
	}

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		RenderCacheSizeMB: cfg.Cache.RenderSizeMB,
		RenderTTL:         time.Duration(cfg.Cache.RenderTTLMinutes) * time.Minute,
		QueryCacheSize:    cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize renderer
	renderer := render.NewRenderer(render.Config{
		Alpha:           cfg.Render.Alpha,
		AlphaBoundary:   cfg.Render.AlphaBoundary,
		DefaultColormap: cfg.Render.DefaultColormap,
	})

	// Initialize audit journal (SQLite persistence)
	var auditStore *audit.Store
	if cfg.Audit.SQLitePath != "" {
		auditStore, err = audit.NewStore(cfg.Audit.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize audit journal: %v", err)
		}
		defer auditStore.Close()
		log.Printf("Audit journal: sqlite=%s", cfg.Audit.SQLitePath)
	}

	svc := service.NewAnnotationService(ds, cacheManager, renderer, auditStore)

	// Optionally apply a gating scheme at startup
	if *schemePath != "" {
		scheme, err := gating.LoadScheme(*schemePath)
		if err != nil {
			log.Fatalf("Failed to load gating scheme: %v", err)
		}
		results, err := svc.ApplyScheme(scheme)
		if err != nil {
			log.Fatalf("Failed to apply gating scheme: %v", err)
		}
		for i, res := range results {
			log.Printf("  scheme step %d: label %d, %d cells selected", i+1, res.LabelID, res.Selected)
		}
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Service:     svc,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
