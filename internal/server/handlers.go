package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"PortfolioLens/internal/features"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
	"PortfolioLens/internal/rules"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// scoreRequest carries either a ready feature vector or raw holdings.
// Holdings, when present, replace Features.
type scoreRequest struct {
	Features        model.FeatureVector `json:"features"`
	PositionWeights []float64           `json:"position_weights,omitempty"`
	Holdings        []features.Holding  `json:"holdings,omitempty"`
	Profile         features.Profile    `json:"profile"`
}

type evaluateRequest struct {
	Rule    string        `json:"rule"`
	Context rules.Context `json:"context"`
}

type evaluateResponse struct {
	Rule   string `json:"rule"`
	Result bool   `json:"result"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"catalog_version": cat.Version,
		"philosophies":    len(cat.Philosophies),
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fv := req.Features
	if len(req.Holdings) > 0 {
		extracted, err := s.extractor.Extract(req.Holdings)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		fv = req.Profile.Apply(extracted)
	}
	fv = features.ApplyConcentration(fv, req.PositionWeights)
	if err := fv.CheckFinite(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := time.Now()
	res := s.engine.ScorePortfolio(fv)
	if s.metrics != nil {
		s.metrics.ObserveScore("api", res, time.Since(start))
	}

	run := recorder.NewRun(res, s.engine.Catalog().Version)
	if err := s.recorder.RecordRun(r.Context(), run); err != nil {
		// history is best effort, the score is still returned
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("failed to record scoring run")
	} else {
		w.Header().Set("X-Run-ID", run.ID)
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// client rules stay out of the engine's compiler cache and failure metrics
	resp := evaluateResponse{Rule: req.Rule, Valid: true}
	result, err := rules.EvaluateOnce(req.Rule, req.Context)
	if err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	resp.Result = result
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPhilosophies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Catalog())
}

func (s *Server) handleGetPhilosophy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.engine.Catalog().Find(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("philosophy %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.recorder.RecentRuns(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load history")
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// decode reads a JSON body, rejecting unknown fields and trailing data.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
