package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openvent/helios-core/internal/coordinator"
	"github.com/openvent/helios-core/internal/variable"
)

// maxVariableIDLen bounds the {id} path parameter. Catalog IDs are short
// snake_case names; anything longer is garbage.
const maxVariableIDLen = 64

// variableResponse combines catalog metadata with the cached value.
type variableResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Writable bool           `json:"writable"`
	Min      *float64       `json:"min,omitempty"`
	Max      *float64       `json:"max,omitempty"`
	Labels   map[int]string `json:"labels,omitempty"`

	Value     any    `json:"value"`
	Valid     bool   `json:"valid"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// setVariableRequest is the body for PUT /variables/{id}.
// Value is kept raw so a missing key can be told apart from an explicit null.
type setVariableRequest struct {
	Value json.RawMessage `json:"value"`
}

// buildVariableResponse merges a catalog entry with its cached value.
func buildVariableResponse(v variable.Variable, cached coordinator.CachedValue) variableResponse {
	resp := variableResponse{
		ID:       v.ID,
		Name:     v.Name,
		Kind:     string(v.Kind),
		Writable: v.Writable,
		Labels:   v.Labels,
		Value:    cached.Value,
		Valid:    cached.Valid,
	}
	if v.Writable && v.Kind != variable.KindString {
		minVal, maxVal := v.Min, v.Max
		resp.Min = &minVal
		resp.Max = &maxVal
	}
	if !cached.UpdatedAt.IsZero() {
		resp.UpdatedAt = cached.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleListVariables returns every catalog variable with its cached value.
func (s *Server) handleListVariables(w http.ResponseWriter, _ *http.Request) {
	vars := s.coord.Registry().All()

	out := make([]variableResponse, 0, len(vars))
	for _, v := range vars {
		cached, _ := s.coord.GetValue(v.ID)
		out = append(out, buildVariableResponse(v, cached))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"variables": out,
		"count":     len(out),
	})
}

// handleGetVariable returns one variable with its cached value.
func (s *Server) handleGetVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxVariableIDLen {
		writeBadRequest(w, "invalid variable ID")
		return
	}

	v, err := s.coord.Registry().Resolve(id)
	if err != nil {
		writeNotFound(w, "variable not found")
		return
	}

	cached, _ := s.coord.GetValue(id)
	writeJSON(w, http.StatusOK, buildVariableResponse(v, cached))
}

// handleSetVariable writes a value to a variable through the coordinator.
//
// Validation failures (read-only variable, value out of range) come back
// before any device I/O as 400. A write superseded by a newer one while
// queued maps to 409.
func (s *Server) handleSetVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxVariableIDLen {
		writeBadRequest(w, "invalid variable ID")
		return
	}

	var req setVariableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Value) == 0 {
		writeBadRequest(w, "value is required")
		return
	}

	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	if err := s.coord.Set(r.Context(), id, value); err != nil {
		s.writeSetError(w, id, err)
		return
	}

	v, err := s.coord.Registry().Resolve(id)
	if err != nil {
		writeInternalError(w, "failed to load variable")
		return
	}
	cached, _ := s.coord.GetValue(id)
	writeJSON(w, http.StatusOK, buildVariableResponse(v, cached))
}

// writeSetError maps coordinator write failures to HTTP responses.
func (s *Server) writeSetError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, variable.ErrUnknownVariable):
		writeNotFound(w, "variable not found")
	case errors.Is(err, variable.ErrNotWritable):
		writeValidationError(w, "variable is read-only")
	case errors.Is(err, variable.ErrOutOfRange):
		writeValidationError(w, err.Error())
	case errors.Is(err, variable.ErrEncodeFailed):
		writeValidationError(w, err.Error())
	case errors.Is(err, coordinator.ErrWriteSuperseded):
		writeConflict(w, "write superseded by a newer value")
	case errors.Is(err, coordinator.ErrShuttingDown):
		writeServiceUnavailable(w, "coordinator is shutting down")
	default:
		s.logger.Error("variable write failed", "variable_id", id, "error", err)
		writeInternalError(w, "write failed")
	}
}

// handleGetVariableHistory returns recorded value changes, newest first.
func (s *Server) handleGetVariableHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxVariableIDLen {
		writeBadRequest(w, "invalid variable ID")
		return
	}

	if _, err := s.coord.Registry().Resolve(id); err != nil {
		writeNotFound(w, "variable not found")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history query failed", "variable_id", id, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"variable_id": id,
		"entries":     entries,
		"count":       len(entries),
	})
}

// parseHistoryLimit parses the optional limit query parameter. Zero means
// "use the repository default".
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return limit, nil
}
