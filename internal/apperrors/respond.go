package apperrors

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	OK        bool   `json:"ok"`
	Code      string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes an arbitrary JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return
	}
}

// WriteError translates a service error into the standard envelope. The
// underlying cause (if any) is logged server-side and never serialized.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := KindOf(err)
	if kind == KindInternal || kind == KindTransient {
		log.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}

	WriteJSON(w, HTTPStatus(kind), ErrorResponse{
		OK:        false,
		Code:      CodeOf(err),
		Message:   MessageOf(err),
		RequestID: GetRequestID(r.Context()),
	})
}

// WriteErrorStatus writes an ad hoc error envelope with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		OK:        false,
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	})
}
