package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/apperr"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// Payload is the envelope of every JSON response.
type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponse sends a JSON response with the given status and payload
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	JSONResponse(w, status, Payload{Success: true, Data: data})
}

func badRequest(w http.ResponseWriter, msg string) {
	JSONResponse(w, http.StatusBadRequest, Payload{Success: false, Error: msg})
}

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidCredentials, apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidOperation:
		return http.StatusBadRequest
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with its stable user-facing message. The wrapped
// cause is logged, never sent. A locked channel also returns its metadata.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	payload := Payload{Success: false, Error: apperr.Message(err)}

	var locked *access.LockedError
	if errors.As(err, &locked) {
		payload.Data = locked.Channel
	}

	JSONResponse(w, status, payload)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
