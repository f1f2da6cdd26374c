package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Partial bool   `json:"partial,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	err = toServiceError(err)
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case ServiceErrorInvalid:
			status = http.StatusBadRequest
		case ServiceErrorNotFound:
			status = http.StatusNotFound
		case ServiceErrorConflict:
			status = http.StatusConflict
		case ServiceErrorTimeout:
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
		body.Kind = string(svcErr.Kind)
		if svcErr.Message != "" {
			body.Error = svcErr.Message
		}
		if svcErr.Partial != nil {
			body.Partial = true
			body.Stdout = svcErr.Partial.Stdout
			body.Stderr = svcErr.Partial.Stderr
		}
	}
	writeJSON(w, status, body)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func decodeJSONBody(r *http.Request, out any) error {
	if r.Body == nil {
		return invalidError("request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return invalidError("invalid json body", err)
	}
	return nil
}
