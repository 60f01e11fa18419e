package api

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/gorilla/websocket"
)

// Authenticate attaches the caller's verified identity to the request
// context. A request without a credential proceeds anonymously; a request
// with a credential that fails verification is rejected outright.
//
// The credential is read from "Authorization: Bearer <token>", or from the
// token query parameter on websocket upgrades, which browsers cannot send
// headers with.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, present := bearerToken(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.issuer.Verify(token)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return "", true
		}
		return strings.TrimSpace(token), true
	}
	if websocket.IsWebSocketUpgrade(r) && r.URL.Query().Has("token") {
		return r.URL.Query().Get("token"), true
	}
	return "", false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Logger logs one line per request.
func (s *Server) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}
