package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/search"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// статус по типу доменной ошибки; всё неизвестное - 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRadius),
		errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrEmptyLocation),
		errors.Is(err, domain.ErrTooManyLocations),
		errors.Is(err, domain.ErrLocationTooShort):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAllGeocodingFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type searchRequest struct {
	domain.SearchParameters
	TimeoutSec int `json:"timeoutSec,omitempty"`
}

func (r searchRequest) options() search.Options {
	var opts search.Options
	if r.TimeoutSec > 0 {
		opts.Timeout = time.Duration(r.TimeoutSec) * time.Second
	}
	return opts
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.controller.PerformSearch(r.Context(), req.SearchParameters, req.options())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// smartSearchRequest обслуживает и smart, и multi: тело одно,
// различается только вызываемая операция контроллера
type smartSearchRequest struct {
	LocationInput string                 `json:"locationInput"`
	RadiusMiles   float64                `json:"radius"`
	Keywords      string                 `json:"keywords,omitempty"`
	Causes        []string               `json:"causes,omitempty"`
	Type          domain.OpportunityType `json:"type,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
	TimeoutSec    int                    `json:"timeoutSec,omitempty"`
}

func (r smartSearchRequest) params() domain.SearchParameters {
	return domain.SearchParameters{
		RadiusMiles: r.RadiusMiles,
		Keywords:    r.Keywords,
		Causes:      r.Causes,
		Type:        r.Type,
		Limit:       r.Limit,
	}
}

func (r smartSearchRequest) options() search.Options {
	var opts search.Options
	if r.TimeoutSec > 0 {
		opts.Timeout = time.Duration(r.TimeoutSec) * time.Second
	}
	return opts
}

func (s *Server) handleSmartSearch(w http.ResponseWriter, r *http.Request) {
	var req smartSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.controller.PerformSmartSearch(r.Context(), req.LocationInput, req.params(), req.options())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMultiSearch(w http.ResponseWriter, r *http.Request) {
	var req smartSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.controller.PerformMultiLocationSearch(r.Context(), req.LocationInput, req.params(), req.options())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type retrySearchRequest struct {
	Params   domain.SearchParameters `json:"params"`
	Previous *domain.SearchResult    `json:"previous"`
}

func (s *Server) handleRetrySearch(w http.ResponseWriter, r *http.Request) {
	var req retrySearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Previous == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("previous result is required"))
		return
	}

	result, err := s.controller.RetryFailedSources(r.Context(), req.Params, req.Previous, search.Options{})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type validateLocationsRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleValidateLocations(w http.ResponseWriter, r *http.Request) {
	var req validateLocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, search.ValidateLocationInput(req.Input))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.GetCacheStats())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.controller.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

type cacheConfigRequest struct {
	TTLSeconds int `json:"ttlSeconds"`
	MaxSize    int `json:"maxSize"`
}

func (s *Server) handleConfigureCache(w http.ResponseWriter, r *http.Request) {
	var req cacheConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.controller.ConfigureCaching(time.Duration(req.TTLSeconds)*time.Second, req.MaxSize)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.controller.TestConnectivity(r.Context())

	healthy := 0
	for _, st := range statuses {
		if st.Healthy {
			healthy++
		}
	}
	status := http.StatusOK
	text := "ok"
	switch {
	case healthy == 0:
		status = http.StatusServiceUnavailable
		text = "down"
	case healthy < len(statuses):
		text = "degraded"
	}

	s.writeJSON(w, status, map[string]any{
		"status":    text,
		"providers": statuses,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.GetSearchStats())
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.searchLog == nil {
		s.writeError(w, http.StatusNotFound, errors.New("search log is not configured"))
		return
	}

	runs, err := s.searchLog.Recent(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}
