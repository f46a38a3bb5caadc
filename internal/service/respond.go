package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/models"
	"github.com/PaulBabatuyi/WeddingHub/internal/submission"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`

	Rule   string `json:"rule,omitempty"`
	Step   string `json:"step,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
	Kind   string `json:"kind,omitempty"`

	Stage       string `json:"stage,omitempty"`
	Class       string `json:"class,omitempty"`
	Compensated *bool  `json:"compensated,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeFailure maps domain errors to HTTP responses.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *wizard.ValidationError
		ferr     *wizard.FieldError
		rejected *media.Rejection
		failure  *submission.Failure
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: verr.Message(),
			Rule:  string(verr.Rule),
			Step:  verr.Step.String(),
		})
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ferr.Error(), Field: string(ferr.Field)})
	case errors.Is(err, wizard.ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  rejected.Error(),
			Reason: rejected.Reason.String(),
			Kind:   rejected.Kind.String(),
		})
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &failure):
		status := http.StatusInternalServerError
		if failure.Transient() {
			status = http.StatusBadGateway
		}
		compensated := failure.Compensated
		writeJSON(w, status, errorResponse{
			Error:       failure.Cause.Error(),
			Stage:       failure.Stage.String(),
			Class:       failure.Class.String(),
			Compensated: &compensated,
		})
	case errors.Is(err, submission.ErrUnauthenticated), errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
