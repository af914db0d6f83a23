// Package server exposes comparison runs over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/terrastat/landsig/internal/model"
	"github.com/terrastat/landsig/internal/store"
)

// RunFunc executes a queued comparison run. Implementations load the rasters
// named in the run params and produce a summary.
type RunFunc func(ctx context.Context, run *model.Run) (*model.RunSummary, error)

// Server serves run records from the store and, when a runner is configured,
// accepts new comparison requests.
type Server struct {
	store  store.Store
	runner RunFunc
}

// New creates a server over the given store. runner may be nil, in which case
// POST /api/runs records the run as queued without executing it.
func New(st store.Store, runner RunFunc) *Server {
	return &Server{store: st, runner: runner}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/runs", func(api chi.Router) {
		api.Get("/", s.handleListRuns)
		api.Post("/", s.handleCreateRun)
		api.Get("/{runID}", s.handleGetRun)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var params model.RunParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if params.SourceA == "" || params.SourceB == "" {
		respondError(w, http.StatusBadRequest, "source_a and source_b are required")
		return
	}

	run, err := s.store.CreateRun(r.Context(), params)
	if err != nil {
		zap.L().Error("create run failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "create run failed")
		return
	}

	if s.runner != nil {
		// Comparison runs take minutes on large rasters; execute off the
		// request path and let clients poll GET /api/runs/{id}.
		go s.execute(run)
	}

	respondJSON(w, http.StatusAccepted, run)
}

// execute drives one queued run through the store lifecycle.
func (s *Server) execute(run *model.Run) {
	ctx := context.Background()
	log := zap.L().With(zap.String("run_id", run.ID))

	if err := s.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Error("mark run running failed", zap.Error(err))
		return
	}

	summary, err := s.runner(ctx, run)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if ferr := s.store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			log.Error("mark run failed failed", zap.Error(ferr))
		}
		return
	}

	if err := s.store.CompleteRun(ctx, run.ID, summary); err != nil {
		log.Error("mark run complete failed", zap.Error(err))
		return
	}
	log.Info("run complete",
		zap.Int("tiles_a", summary.TilesA),
		zap.Int("tiles_b", summary.TilesB),
	)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
