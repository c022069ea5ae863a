package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ammar0144/reportq/pkg/definitions"
	"github.com/ammar0144/reportq/pkg/report"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// saveDefinitionRequest is the body of POST /definitions
type saveDefinitionRequest struct {
	ID      string                 `json:"id,omitempty"`
	Name    string                 `json:"name"`
	Entity  string                 `json:"entity"`
	Columns []string               `json:"columns"`
	Filters map[string]interface{} `json:"filters"`
	Limit   int                    `json:"limit"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListEntities())
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetEntityConfig(report.EntityKey(mux.Vars(r)["key"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) runReport(w http.ResponseWriter, r *http.Request) {
	req := report.Request{
		Limit:     report.DefaultLimit,
		Ascending: true,
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.engine.RunReport(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.engine.ListDefinitions()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) saveDefinition(w http.ResponseWriter, r *http.Request) {
	var body saveDefinitionRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if body.Name == "" || body.Entity == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and entity are required"})
		return
	}

	saved, err := s.engine.SaveDefinition(definitions.Definition{
		ID:      body.ID,
		Name:    body.Name,
		Entity:  body.Entity,
		Columns: body.Columns,
		Filters: body.Filters,
		Limit:   body.Limit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) getDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.engine.GetDefinition(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) deleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteDefinition(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runDefinition(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.RunDefinition(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearCache(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Cache().Stats())
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case report.IsDisallowedEntity(err):
		return http.StatusNotFound
	case definitions.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, report.ErrDefinitionsUnavailable):
		return http.StatusServiceUnavailable
	case report.IsRemoteExecution(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
