package daemon

import "net/http"

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", a.Health)
	mux.HandleFunc("/v1/exec", a.Exec)
	mux.HandleFunc("/v1/exec/async", a.ExecAsync)
	mux.HandleFunc("/v1/jobs", a.Jobs)
	mux.HandleFunc("/v1/jobs/", a.JobByID)
	mux.HandleFunc("/v1/history", a.History)
	mux.HandleFunc("/v1/history/", a.HistoryByID)
	mux.HandleFunc("/v1/session", a.Session)
	mux.HandleFunc("/v1/session/", a.SessionAction)
	mux.HandleFunc("/v1/env", a.Env)
	mux.HandleFunc("/v1/cwd", a.Cwd)
	mux.HandleFunc("/v1/which", a.Which)
	mux.HandleFunc("/v1/processes/", a.ProcessByPID)
	mux.HandleFunc("/v1/shutdown", a.ShutdownDaemon)
}
