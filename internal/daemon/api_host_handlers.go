package daemon

import (
	"net/http"
	"strconv"
	"strings"
)

func (a *API) Env(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"env": a.Service.Environment(r.Context())})
}

func (a *API) Cwd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dir, err := a.Service.WorkingDirectory(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cwd": dir})
}

func (a *API) Which(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	command := r.URL.Query().Get("command")
	path, found, err := a.Service.Which(r.Context(), command)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WhichResponse{Command: command, Found: found, Path: path})
}

func (a *API) ProcessByPID(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/processes/"), "/")
	if raw == "" || strings.Contains(raw, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pid, err := strconv.Atoi(raw)
	if err != nil {
		writeServiceError(w, invalidError("invalid pid", err))
		return
	}
	outcome, err := a.Service.MonitorProcess(r.Context(), pid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
