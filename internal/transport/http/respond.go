package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/domain"
)

// entryPath is where clients without a usable session are sent.
const entryPath = "/"

type errorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps domain errors onto status codes. Anything unrecognised
// is a server fault and is logged.
func respondError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status, redirect := classify(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	if status == http.StatusSeeOther {
		w.Header().Set("Location", redirect)
	}
	respondJSON(w, status, errorResponse{Error: err.Error(), Redirect: redirect})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAuthFailed):
		return http.StatusUnauthorized, ""
	case errors.Is(err, domain.ErrStalePosition):
		return http.StatusConflict, ""
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ""
	case errors.Is(err, domain.ErrEmptyPool):
		return http.StatusUnprocessableEntity, ""
	case errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusSeeOther, entryPath
	case errors.Is(err, domain.ErrSessionComplete):
		return http.StatusConflict, "/api/session/finish"
	case errors.Is(err, domain.ErrSessionInProgress):
		return http.StatusConflict, "/api/session/question"
	default:
		return http.StatusInternalServerError, ""
	}
}
