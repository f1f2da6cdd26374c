package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"hostexec/internal/types"
)

// History serves the tail of the log, or a search when q is given.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	var entries []types.HistoryEntry
	if _, ok := query["q"]; ok {
		entries = a.Service.SearchHistory(r.Context(), query.Get("q"))
	} else {
		entries = a.Service.History(r.Context(), parseLimit(query.Get("limit")))
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) HistoryByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/history/"), "/")
	parts := strings.Split(path, "/")
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id == 0 {
		writeServiceError(w, invalidError("invalid history id", err))
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		entry, err := a.Service.HistoryEntry(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case len(parts) == 2 && parts[1] == "rerun":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		outcome, err := a.Service.Rerun(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}
