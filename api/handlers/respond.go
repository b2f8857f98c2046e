package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/config"
	"github.com/missingalert/missing-alert-api/models"
)

// writeEnvelope stamps env and writes it with the given status
func writeEnvelope(w http.ResponseWriter, status int, env models.Envelope) {
	env.Timestamp = models.Now(time.Now())
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		zap.S().Warnw("failed to write response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, models.Envelope{Success: true, Message: message, Data: data})
}

// writeError renders err as an error envelope. Unclassified errors become a 500 with
// the fallback message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	appErr := apperrors.From(err, fallback)
	config.ErrorStatus(appErr.Message, appErr.HTTPStatus, w, err, appErr.Fields...)
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperrors.Validation("Invalid request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("Invalid request body")
	}
	return nil
}
