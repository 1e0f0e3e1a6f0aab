package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mergemap/internal/artifact"
	"mergemap/internal/integrate"
	"mergemap/internal/runstore"
	"mergemap/internal/types"
	"mergemap/internal/util/jsonutil"
)

type apiServer struct {
	svc       *integrate.Service
	runs      *runstore.Store
	artifacts *artifact.S3Store
	watcher   *integrate.Watcher
}

type integrateRequest struct {
	SourceLocation string `json:"sourceLocation"`
	TargetLocation string `json:"targetLocation"`
	Branch         string `json:"branch,omitempty"`
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *apiServer) handleIntegrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in integrateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in.SourceLocation = strings.TrimSpace(in.SourceLocation)
	in.TargetLocation = strings.TrimSpace(in.TargetLocation)
	if in.SourceLocation == "" || in.TargetLocation == "" {
		httpError(w, http.StatusBadRequest, "sourceLocation and targetLocation are required")
		return
	}

	result, err := s.svc.Integrate(r.Context(), in.SourceLocation, in.TargetLocation, strings.TrimSpace(in.Branch))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRun serves GET /api/runs/{id} and
// GET /api/runs/{id}/artifacts/{name} (presigned download link).
func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	runID = strings.TrimSpace(runID)
	if runID == "" {
		httpError(w, http.StatusBadRequest, "run id is required")
		return
	}

	if sub != "" {
		name := strings.TrimPrefix(sub, "artifacts/")
		if name == sub || name == "" {
			httpError(w, http.StatusNotFound, "unknown resource")
			return
		}
		s.serveArtifactURL(w, r, runID, name)
		return
	}

	run, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			httpError(w, http.StatusNotFound, "run not found")
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) serveArtifactURL(w http.ResponseWriter, r *http.Request, runID, name string) {
	if s.artifacts == nil {
		httpError(w, http.StatusNotFound, "artifact store is not configured")
		return
	}
	url, err := s.artifacts.GetURL(r.Context(), runID, name)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "name": name, "url": url})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var notFound *types.NotFoundError
	if errors.As(err, &notFound) {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}
	var collab *types.CollaboratorError
	if errors.As(err, &collab) {
		httpError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpError(w, http.StatusInternalServerError, err.Error())
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
