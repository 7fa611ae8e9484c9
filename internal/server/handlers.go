package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"airq-service/internal/analytics"
	"airq-service/internal/models"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
	defaultDropsLimit  = 10
	maxDropsLimit      = 100
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryLimit reads ?limit=, falling back to def and capping at max.
func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": now(),
		"version":   version,
		"locales":   s.catalogs.Locales(),
	}

	if s.store == nil {
		health["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn("redis ping failed", "error", err)
			health["status"] = "degraded"
			health["redis"] = "unavailable"
		} else {
			health["redis"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) analysisHandler(w http.ResponseWriter, r *http.Request) {
	var in models.RawInputs
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	engine := s.engineFor(r)
	result := engine.Analyze(in)
	observeResult(result, "api")

	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	s.storeRecord(r.Context(), models.AnalysisRecord{
		ID:        newID(),
		DeviceID:  r.URL.Query().Get("device_id"),
		Timestamp: now(),
		Locale:    engine.Locale(),
		Inputs:    in,
		Result:    result,
	})
	writeJSON(w, http.StatusOK, result)
}

type improvementRequest struct {
	Inputs models.RawInputs `json:"inputs"`
	// Deltas may be omitted to simulate the suggested corrections.
	Deltas models.Deltas `json:"deltas,omitempty"`
}

func (s *Server) improvementHandler(w http.ResponseWriter, r *http.Request) {
	var req improvementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	engine := s.engineFor(r)
	if errs := engine.Validate(req.Inputs); len(errs) > 0 {
		validationFailures.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"errors":  errs,
		})
		return
	}

	deltas := req.Deltas
	if len(deltas) == 0 {
		deltas = engine.SuggestDeltas(req.Inputs)
	}

	prediction, err := engine.Simulate(req.Inputs, deltas)
	switch {
	case errors.Is(err, analytics.ErrUnknownMetric), errors.Is(err, analytics.ErrUnreachableTarget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("simulation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) recentAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "recent analyses feed is disabled")
		return
	}
	limit, err := queryLimit(r, defaultRecentLimit, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.RecentAnalyses(r.Context(), int64(limit))
	if err != nil {
		s.log.Error("failed to read recent analyses", "error", err)
		writeError(w, http.StatusBadGateway, "failed to read recent analyses")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) ingestReadingHandler(w http.ResponseWriter, r *http.Request) {
	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if reading.ID == "" {
		reading.ID = newID()
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now()
	}

	select {
	case s.readings <- reading:
		queueDepth.Set(float64(len(s.readings)))
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"id":     reading.ID,
		})
	default:
		s.log.Warn("ingest queue full", "device_id", reading.DeviceID)
		writeError(w, http.StatusServiceUnavailable, "queue full")
	}
}

func (s *Server) getAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

func (s *Server) getDropsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultDropsLimit, maxDropsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.RecentDrops(limit))
}

type referenceRange struct {
	analytics.ReferenceRange
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	OptimalRange string `json:"optimal_range"`
}

type referenceBand struct {
	analytics.Band
	Label string `json:"label"`
}

type reference struct {
	Locale  string                           `json:"locale"`
	Ranges  map[models.Metric]referenceRange `json:"ranges"`
	Weights []analytics.Weight               `json:"weights"`
	Bands   []referenceBand                  `json:"bands"`
	Rules   []analytics.Rule                 `json:"rules"`
}

func (s *Server) referenceHandler(w http.ResponseWriter, r *http.Request) {
	engine := s.engineFor(r)
	cat, _ := s.catalogs.Get(engine.Locale())

	ref := reference{
		Locale:  engine.Locale(),
		Ranges:  map[models.Metric]referenceRange{},
		Weights: engine.Weights(),
		Rules:   engine.Rules(),
	}
	for m, rr := range engine.Ranges() {
		ref.Ranges[m] = referenceRange{
			ReferenceRange: rr,
			Name:           cat.MetricName(string(m)),
			Unit:           cat.Units[string(m)],
			OptimalRange:   cat.OptimalRanges[string(m)],
		}
	}
	for _, b := range engine.Bands() {
		ref.Bands = append(ref.Bands, referenceBand{Band: b, Label: cat.CategoryLabel(b.Level)})
	}
	writeJSON(w, http.StatusOK, ref)
}
