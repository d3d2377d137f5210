package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/scenario"
)

// launchRequest is the body of POST /api/scenarios/{name}/launch.
type launchRequest struct {
	Parameters map[string]string `json:"parameters,omitempty"`
}

// launchResponse carries the accepted execution id.
type launchResponse struct {
	ExecutionID int64 `json:"executionId"`
}

// statusResponse describes the engine for GET /api/status.
type statusResponse struct {
	Running   bool `json:"running"`
	Uptime    int  `json:"uptime"`
	Scenarios int  `json:"scenarios"`
}

// adminHandler builds the administrative API: scenario enumeration,
// on-demand starter launches, and execution history browsing.
func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/scenarios/{name}/parameters", s.handleScenarioParameters)
	mux.HandleFunc("POST /api/scenarios/{name}/launch", s.handleLaunch)
	mux.HandleFunc("GET /api/executions", s.handleExecutions)
	mux.HandleFunc("GET /api/executions/{id}", s.handleExecution)
	mux.HandleFunc("DELETE /api/executions", s.handleExecutionReset)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Running:   s.IsRunning(),
		Uptime:    s.Uptime(),
		Scenarios: s.registry.Len(),
	})
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("kind") == "starter" {
		writeJSON(w, http.StatusOK, s.registry.StarterNames())
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Names())
}

func (s *Server) handleScenarioParameters(w http.ResponseWriter, r *http.Request) {
	params, err := s.registry.Parameters(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "scenario not found", err.Error())
		return
	}
	if params == nil {
		params = []scenario.Param{}
	}
	writeJSON(w, http.StatusOK, params)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	// An empty body launches with declared parameter defaults.
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid launch request", err.Error())
		return
	}

	id, err := s.Launch(r.Context(), r.PathValue("name"), req.Parameters)
	if err != nil {
		var notFound *scenario.NotFoundError
		var launchErr *execution.LaunchError
		switch {
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, "scenario not found", err.Error())
		case errors.As(err, &launchErr):
			writeError(w, http.StatusBadRequest, "launch rejected", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "launch failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, launchResponse{ExecutionID: id})
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	filter := execution.ListFilter{
		ScenarioName: r.URL.Query().Get("scenario"),
		Status:       execution.Status(r.URL.Query().Get("status")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", limit)
			return
		}
		filter.Limit = n
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list executions", err.Error())
		return
	}
	if records == nil {
		records = []*execution.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid execution id", r.PathValue("id"))
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, execution.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "execution not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load execution", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleExecutionReset bulk-deletes the execution history. Gated behind
// the allowExecutionReset feature flag; without it the endpoint refuses.
func (s *Server) handleExecutionReset(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.AllowExecutionReset {
		writeError(w, http.StatusForbidden, "execution reset disabled",
			"set allowExecutionReset in the configuration to enable bulk deletion")
		return
	}
	if err := s.store.DeleteAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete executions", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
