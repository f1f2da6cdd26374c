package daemon

import (
	"net/http"
	"strings"

	"hostexec/internal/types"
)

func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.Service.SessionStatus(r.Context()))
}

func (a *API) SessionAction(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/session/"), "/")
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var (
		status types.ShellStatus
		err    error
	)
	switch action {
	case "start":
		status, err = a.Service.StartSession(r.Context())
	case "stop":
		status, err = a.Service.StopSession(r.Context())
	case "restart":
		status, err = a.Service.RestartSession(r.Context())
	case "run":
		a.sessionRun(w, r)
		return
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) sessionRun(w http.ResponseWriter, r *http.Request) {
	var req SessionRunRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	outcome, err := a.Service.RunInSession(r.Context(), req.Command)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
