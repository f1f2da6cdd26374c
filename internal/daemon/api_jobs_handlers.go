package daemon

import (
	"net/http"
	"strconv"
	"strings"
)

func (a *API) Jobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"jobs": a.Service.ListJobs(r.Context())})
	case http.MethodPost:
		var req ExecRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}
		spec, err := req.spec()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		job, err := a.Service.ExecuteBackground(r.Context(), spec)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) JobByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "terminate" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		writeServiceError(w, invalidError("invalid job id", err))
		return
	}
	terminated, err := a.Service.TerminateJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TerminateJobResponse{ID: id, Terminated: terminated})
}
