package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/workflow"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorBody{
		RequestID: requestIDFrom(r.Context()),
		Error:     errorDetail{Code: code, Message: message, Details: details},
	})
}

// readJSON decodes a single JSON object and rejects unknown fields.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return common.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return common.NewValidationError("body", "trailing data after JSON object")
	}
	return nil
}

// writeServiceError maps a service error onto a status code and a stable
// error code. Unexpected errors are logged and hidden behind a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ite *workflow.IllegalTransitionError
		pe  *workflow.PreconditionError
		ve  *common.ValidationError
	)

	switch {
	case errors.As(err, &ite):
		allowed := ite.Allowed
		if allowed == nil {
			allowed = []string{}
		}
		writeError(w, r, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error(), map[string]any{
			"from": ite.From, "to": ite.To, "allowed": allowed,
		})
	case errors.As(err, &pe):
		allowed := pe.Allowed
		if allowed == nil {
			allowed = []string{}
		}
		writeError(w, r, http.StatusConflict, "PRECONDITION_NOT_MET", err.Error(), map[string]any{
			"reason": string(pe.Reason), "detail": pe.Detail, "allowed": allowed,
		})
	case errors.As(err, &ve):
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), details)
	case errors.Is(err, common.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, common.ErrUnknownEntityType):
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_ENTITY_TYPE", err.Error(), nil)
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	case errors.Is(err, common.ErrAlreadyInTargetState):
		writeError(w, r, http.StatusConflict, "ALREADY_IN_TARGET_STATE", err.Error(), nil)
	case errors.Is(err, common.ErrAlreadySigned):
		writeError(w, r, http.StatusConflict, "ALREADY_SIGNED", err.Error(), nil)
	case errors.Is(err, common.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, "VERSION_CONFLICT", err.Error(), nil)
	case errors.Is(err, common.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "ALREADY_EXISTS", err.Error(), nil)
	case errors.Is(err, common.ErrIllegalTransition), errors.Is(err, common.ErrPreconditionNotMet):
		writeError(w, r, http.StatusConflict, "STATE_CONFLICT", err.Error(), nil)
	case errors.Is(err, common.ErrCredentialRejected):
		writeError(w, r, http.StatusForbidden, "CREDENTIAL_REJECTED", "credential rejected", nil)
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
