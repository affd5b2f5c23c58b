// Package admin serves the operator endpoints: metrics, snapshot status and
// on-demand reloads. It runs on its own listener, apart from the query API.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohamedthameursassi/saferoute/engine"
)

// Reloader builds a new snapshot and swaps it in.
type Reloader interface {
	ReloadFrom(ctx context.Context, l engine.Loader) (*engine.Snapshot, error)
	Snapshot() *engine.Snapshot
}

type Handler struct {
	engine        Reloader
	loader        engine.Loader
	reloadTimeout time.Duration
}

type SnapshotStatus struct {
	Version     string    `json:"version"`
	LoadedAt    time.Time `json:"loaded_at"`
	RiskPoints  int       `json:"risk_points"`
	MaxCount    int       `json:"max_count"`
	ModelLoaded bool      `json:"model_loaded"`
	Model       string    `json:"model,omitempty"`
}

func NewHandler(e Reloader, loader engine.Loader) *Handler {
	return &Handler{
		engine:        e,
		loader:        loader,
		reloadTimeout: 2 * time.Minute,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/admin/snapshot", h.Snapshot).Methods("GET")
	router.HandleFunc("/admin/reload", h.Reload).Methods("POST")
}

// NewRouter returns a mux router with every admin route registered.
func NewRouter(e Reloader, loader engine.Loader) *mux.Router {
	r := mux.NewRouter()
	NewHandler(e, loader).RegisterRoutes(r)
	return r
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status(h.engine.Snapshot()))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.reloadTimeout)
	defer cancel()

	log.Printf("[admin] reload requested from %s", r.RemoteAddr)
	snap, err := h.engine.ReloadFrom(ctx, h.loader)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   err.Error(),
			"current": status(h.engine.Snapshot()),
		})
		return
	}
	writeJSON(w, http.StatusOK, status(snap))
}

func status(s *engine.Snapshot) SnapshotStatus {
	st := SnapshotStatus{
		Version:     s.Version,
		LoadedAt:    s.LoadedAt,
		RiskPoints:  s.Surface.Len(),
		MaxCount:    s.Surface.MaxCount(),
		ModelLoaded: s.ModelLoaded(),
	}
	if s.Model != nil {
		st.Model = s.Model.Name()
	}
	return st
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[admin] encoding response: %v", err)
	}
}
