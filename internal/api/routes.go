// Package api provides HTTP handlers for the cytogate server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cytogate/cytogate/internal/dataset"
	"github.com/cytogate/cytogate/internal/gating"
	"github.com/cytogate/cytogate/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Service     *service.AnnotationService
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	svc := cfg.Service

	r.Route("/api", func(r chi.Router) {
		r.Get("/labels", labelsHandler(svc))
		r.Post("/labels", addLabelHandler(svc))
		r.Patch("/labels/{id}", updateLabelHandler(svc))
		r.Delete("/labels/{id}", removeLabelHandler(svc))
		r.Get("/labels/{id}/cells", labelCellsHandler(svc))

		r.Get("/graph", graphHandler(svc))
		r.Post("/gate", gateHandler(svc))
		r.Post("/scheme", schemeHandler(svc))

		r.Get("/events", eventsHandler(svc))
		r.Get("/stats", statsHandler(svc))

		r.Get("/render/labels.png", renderLabelsHandler(svc))
		r.Get("/render/segmentation.png", renderSegmentationHandler(svc))
		r.Get("/render/channel/{channel}", renderChannelHandler(svc))
	})

	return r
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var nf *dataset.NotFoundError
	var ve *dataset.ValidationError
	switch {
	case errors.As(err, &nf):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ve):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func labelsHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels := svc.Labels()
		writeJSON(w, map[string]interface{}{
			"labels": labels,
			"total":  len(labels),
		})
	}
}

type addLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func addLabelHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addLabelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Color) == "" {
			http.Error(w, "color is required", http.StatusBadRequest)
			return
		}

		id, err := svc.AddLabel(req.Name, req.Color)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    id,
			"name":  req.Name,
			"color": req.Color,
		})
	}
}

type updateLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func updateLabelHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid label id", http.StatusBadRequest)
			return
		}

		var req updateLabelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Name == "" && req.Color == "" {
			http.Error(w, "nothing to update (expected name or color)", http.StatusBadRequest)
			return
		}

		if req.Name != "" {
			if err := svc.RenameLabel(id, req.Name); err != nil {
				writeError(w, err)
				return
			}
		}
		if req.Color != "" {
			if err := svc.RecolorLabel(id, req.Color); err != nil {
				writeError(w, err)
				return
			}
		}

		writeJSON(w, map[string]interface{}{"id": id, "updated": true})
	}
}

func removeLabelHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid label id", http.StatusBadRequest)
			return
		}
		prune := r.URL.Query().Get("prune") == "true"

		if err := svc.RemoveLabels([]int{id}, prune); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"id":      id,
			"removed": true,
			"pruned":  prune,
		})
	}
}

func labelCellsHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid label id", http.StatusBadRequest)
			return
		}

		cells, err := svc.CellsFor(id)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"label_id": id,
			"cells":    cells,
			"total":    len(cells),
		})
	}
}

func graphHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodes, err := svc.Graph()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{
			"nodes": nodes,
			"total": len(nodes),
		})
	}
}

type gateRequest struct {
	Label        json.RawMessage `json:"label"`
	Parent       json.RawMessage `json:"parent"`
	Channel      string          `json:"channel"`
	Threshold    float64         `json:"threshold"`
	IntensityKey string          `json:"intensity_key"`
	Override     bool            `json:"override"`
}

// parseLabelRef accepts a JSON number (label id) or string (label name).
func parseLabelRef(raw json.RawMessage) (dataset.LabelRef, error) {
	if len(raw) == 0 {
		return dataset.ByID(gating.RootLabelID), nil
	}
	var id int
	if err := json.Unmarshal(raw, &id); err == nil {
		return dataset.ByID(id), nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return dataset.ByName(name), nil
	}
	return dataset.LabelRef{}, errors.New("label reference must be an id or a name")
}

func gateHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Label) == 0 {
			http.Error(w, "label is required", http.StatusBadRequest)
			return
		}
		if req.Channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}
		if req.IntensityKey == "" {
			http.Error(w, "intensity_key is required", http.StatusBadRequest)
			return
		}

		label, err := parseLabelRef(req.Label)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parent, err := parseLabelRef(req.Parent)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := svc.Gate(gating.GateSpec{
			Label:        label,
			Channel:      req.Channel,
			Threshold:    req.Threshold,
			IntensityKey: req.IntensityKey,
			Override:     req.Override,
			Parent:       parent,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, res)
	}
}

func schemeHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var scheme gating.Scheme
		if err := json.NewDecoder(r.Body).Decode(&scheme); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(scheme.Steps) == 0 {
			http.Error(w, "scheme has no steps", http.StatusBadRequest)
			return
		}

		results, err := svc.ApplyScheme(&scheme)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"steps":   results,
			"applied": len(results),
		})
	}
}

func eventsHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
				limit = v
				if limit > 1000 {
					limit = 1000
				}
			}
		}

		events, err := svc.Events(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}

		writeJSON(w, map[string]interface{}{
			"events": events,
			"total":  len(events),
		})
	}
}

func statsHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Stats())
	}
}

func renderLabelsHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.LabelMaskPNG()
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Write(data)
	}
}

func renderSegmentationHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.SegmentationPNG()
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Write(data)
	}
}

func renderChannelHandler(svc *service.AnnotationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// chi treats '.' as a param delimiter in patterns like `{channel}.png`,
		// which breaks channel names containing '.'; capture the full segment
		// and strip the extension here.
		channel := strings.TrimSuffix(chi.URLParam(r, "channel"), ".png")
		colormapName := r.URL.Query().Get("colormap")

		data, err := svc.ChannelPNG(channel, colormapName)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Write(data)
	}
}
