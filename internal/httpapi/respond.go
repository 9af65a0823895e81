package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// errorEnvelope is the shape every failed request returns, as
// {"error":{"code","message","details"}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeOptionalJSON is decodeJSON for handlers whose body is optional: an
// empty body leaves dst at its zero value instead of erroring.
func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func sendError(w http.ResponseWriter, status int, message string, err error) {
	logEvent := log.Error().Str("message", message).Int("status", status)
	if err != nil {
		logEvent = logEvent.Err(err)
	}
	logEvent.Msg("http api error")

	body := errorEnvelope{Error: errorBody{Code: status, Message: message, Timestamp: time.Now().UTC()}}
	if err != nil {
		body.Error.Details = err.Error()
	}
	sendJSON(w, status, body)
}
