package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
)

// datasetSummary is the list-view projection of a configured dataset.
type datasetSummary struct {
	Name            string `json:"name"`
	Snapshot        bool   `json:"snapshot"`
	ReplicateTarget string `json:"replicateTarget,omitempty"`
	ReplicateSource string `json:"replicateSource,omitempty"`
	LastState       string `json:"lastState,omitempty"`
}

// datasetDetail is the single-dataset-view projection: the merged config
// plus the engine's last-known run status for it.
type datasetDetail struct {
	Config dsconfig.Config   `json:"config"`
	Status *engine.RunStatus `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("statusapi: error encoding json response", "error", err)
	}
}

func (s *Server) handleListDatasets(w http.ResponseWriter, req *http.Request, _ httprouter.Params, logger *slog.Logger) {
	cfgs := s.configs()
	summaries := make([]datasetSummary, 0, len(cfgs))
	for _, cfg := range cfgs {
		summary := datasetSummary{
			Name:            cfg.Name,
			Snapshot:        cfg.Snapshot,
			ReplicateTarget: cfg.ReplicateTarget,
			ReplicateSource: cfg.ReplicateSource,
		}
		if st, ok := s.engine.CurrentRun(cfg.Name); ok {
			summary.LastState = string(st.State)
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, logger, http.StatusOK, summaries)
}

// handleDataset dispatches "/datasets/<name>" to the detail view and
// "/datasets/<name>/snapshots" to the snapshot listing, since both share the
// catch-all *dataset route (see registerRoutes).
func (s *Server) handleDataset(w http.ResponseWriter, req *http.Request, ps httprouter.Params, logger *slog.Logger) {
	raw := strings.TrimPrefix(ps.ByName("dataset"), "/")
	if name, ok := strings.CutSuffix(raw, "/snapshots"); ok {
		s.handleListSnapshots(w, req, name, logger)
		return
	}
	s.handleGetDataset(w, req, raw, logger)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, req *http.Request, name string, logger *slog.Logger) {
	cfg, ok := s.datasetConfig(name)
	if !ok {
		logger.Info("statusapi.handleGetDataset: unknown dataset", "dataset", name)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	detail := datasetDetail{Config: *cfg}
	if st, ok := s.engine.CurrentRun(name); ok {
		detail.Status = &st
	}
	writeJSON(w, logger, http.StatusOK, detail)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, req *http.Request, name string, logger *slog.Logger) {
	if _, ok := s.datasetConfig(name); !ok {
		logger.Info("statusapi.handleListSnapshots: unknown dataset", "dataset", name)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	snaps, err := s.adapter.Snapshots(req.Context(), name)
	if err != nil {
		logger.Error("statusapi.handleListSnapshots: error listing snapshots", "dataset", name, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, logger, http.StatusOK, snaps)
}
