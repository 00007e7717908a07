// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptoptimizer/internal/domain"
	"github.com/aristath/cryptoptimizer/internal/modules/analytics"
	"github.com/aristath/cryptoptimizer/internal/prices"
)

// maxBodyBytes bounds an optimize request body.
const maxBodyBytes = 1 << 20

// Handler handles analytics HTTP requests
type Handler struct {
	service  *analytics.Service
	defaults analytics.Settings
	log      zerolog.Logger
}

// NewHandler creates a new analytics handler. defaults fill every setting a
// request leaves out.
func NewHandler(
	service *analytics.Service,
	defaults analytics.Settings,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		log:      log.With().Str("handler", "analytics").Logger(),
	}
}

// OptimizeRequest is the body of POST /api/analytics/optimize.
type OptimizeRequest struct {
	Assets []string `json:"assets"`
	// Start and End are calendar dates (YYYY-MM-DD); End is exclusive.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	analytics.Overrides
}

// HandleOptimize handles POST /api/analytics/optimize
// Runs one analysis and returns the full report
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var body OptimizeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		h.writeError(w, domain.ConfigurationError("analytics.decode", domain.ErrInvalidSetting, "invalid request body: %v", err))
		return
	}

	start, err := parseDate("start", body.Start)
	if err != nil {
		h.writeError(w, err)
		return
	}
	end, err := parseDate("end", body.End)
	if err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), analytics.Request{
		Assets:   body.Assets,
		Start:    start,
		End:      end,
		Settings: h.defaults.Apply(body.Overrides),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": report,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetModels handles GET /api/analytics/models
// Returns the selectable covariance models and objectives with the defaults
func (h *Handler) HandleGetModels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"covariance_models": analytics.CovarianceModels(),
			"objectives":        analytics.Objectives(),
			"defaults":          h.defaults,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetUniverse handles GET /api/analytics/universe
// Returns the selectable assets and their display names
func (h *Handler) HandleGetUniverse(w http.ResponseWriter, r *http.Request) {
	universe := h.service.Universe()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"assets": universe,
			"count":  len(universe),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(prices.DateLayout, s)
	if err != nil {
		return time.Time{}, domain.ConfigurationError("analytics.decode", domain.ErrInvalidDateRange, "%s must be YYYY-MM-DD, got %q", field, s)
	}
	return t, nil
}

// errorResponse tells the three user-visible failure classes apart.
type errorResponse struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// writeError maps error kinds to statuses: configuration 400, data 422,
// numerical 500. Anything else is an unexpected 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Kind: "internal", Title: "Internal error", Message: "internal error"}

	var de *domain.Error
	if errors.As(err, &de) {
		resp.Kind = de.Kind.String()
		resp.Message = de.Error()
		switch de.Kind {
		case domain.KindConfiguration:
			status, resp.Title = http.StatusBadRequest, "Invalid selection"
		case domain.KindData:
			status, resp.Title = http.StatusUnprocessableEntity, "Data unavailable"
		case domain.KindNumerical:
			status, resp.Title = http.StatusInternalServerError, "Computation failed"
		}
	} else {
		h.log.Error().Err(err).Msg("Unexpected analytics error")
	}

	h.writeJSON(w, status, map[string]interface{}{"error": resp})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
