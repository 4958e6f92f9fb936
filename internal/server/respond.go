package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error          string                   `json:"error"`
	Fields         []core.FieldError        `json:"fields,omitempty"`
	Reason         string                   `json:"reason,omitempty"`
	Violation      core.Violation           `json:"violationType,omitempty"`
	Classification *classify.Classification `json:"classification,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code:
// validation 400, access 403, confirmation 409, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *core.ValidationError
		aerr *core.AccessError
		cerr *query.ConfirmationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Fields: verr.Fields})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Reason: aerr.Reason, Violation: aerr.Violation})
	case errors.As(err, &cerr):
		c := cerr.Classification
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Classification: &c})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}
