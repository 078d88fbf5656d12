package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/couchcryptid/civic-problem-map/internal/report"
	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"
)

type problemsResponse struct {
	Count    int                      `json:"count"`
	Problems []domain.ReportedProblem `json:"problems"`
}

type markersResponse struct {
	ThresholdMeters float64               `json:"threshold_meters"`
	Total           int                   `json:"total"`
	Grouped         int                   `json:"grouped"`
	Excluded        int                   `json:"excluded"`
	Markers         []domain.Marker       `json:"markers"`
	Counts          map[domain.Status]int `json:"counts"`
}

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	problems, err := s.problems.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "list problems", err)
		return
	}

	writeJSON(w, http.StatusOK, problemsResponse{Count: len(problems), Problems: problems})
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	p, err := s.problems.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "get problem", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()

	threshold, err := parseThreshold(q.Get("threshold"), s.proximity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	problems, err := s.problems.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "list problems for markers", err)
		return
	}

	start := time.Now()
	groups := domain.GroupProblems(problems, threshold)
	markers := domain.BuildMarkers(groups)
	s.metrics.GroupingDuration.Observe(time.Since(start).Seconds())

	grouped := 0
	for _, g := range groups {
		grouped += len(g.Members)
	}
	excluded := len(problems) - grouped
	s.metrics.ProblemsExcluded.Set(float64(excluded))

	writeJSON(w, http.StatusOK, markersResponse{
		ThresholdMeters: threshold,
		Total:           len(problems),
		Grouped:         grouped,
		Excluded:        excluded,
		Markers:         markers,
		Counts:          domain.CountByStatus(groups),
	})
}

func parseThreshold(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid threshold %q: must be a positive number of meters", raw)
	}
	return v, nil
}

func parseFilter(q url.Values) (domain.ProblemFilter, error) {
	var f domain.ProblemFilter
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return f, fmt.Errorf("invalid status %q", raw)
		}
		f.Status = status
	}
	f.Category = q.Get("category")
	return f, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, "error", err, "path", r.URL.Path)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		report.Error(err)
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
