package daemon

import "net/http"

func (a *API) Exec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
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
	outcome, err := a.Service.Execute(r.Context(), spec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// ExecAsync runs on the async path: a client that disconnects cancels the
// command.
func (a *API) ExecAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
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
	pending, err := a.Service.ExecuteAsync(r.Context(), spec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	outcome, err := pending.Wait(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
