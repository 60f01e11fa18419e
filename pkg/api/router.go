// Package api exposes the chat services over HTTP and websockets.
package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/hub"
	"github.com/epw80/channel-chat/pkg/service"
	"github.com/epw80/channel-chat/pkg/storage"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Users          *service.Users
	Channels       *service.Channels
	Messages       *service.ChannelMessages
	DirectMessages *service.DirectMessages
	Decider        *access.Decider
	Hub            *hub.Hub
	Issuer         *auth.Issuer
	Store          storage.Gateway
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds the handlers.
type Server struct {
	users    *service.Users
	channels *service.Channels
	messages *service.ChannelMessages
	dms      *service.DirectMessages
	decider  *access.Decider
	hub      *hub.Hub
	issuer   *auth.Issuer
	store    storage.Gateway
	origins  []string
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a Server from its dependencies.
func NewServer(d Deps) *Server {
	s := &Server{
		users:    d.Users,
		channels: d.Channels,
		messages: d.Messages,
		dms:      d.DirectMessages,
		decider:  d.Decider,
		hub:      d.Hub,
		issuer:   d.Issuer,
		store:    d.Store,
		origins:  d.AllowedOrigins,
		logger:   d.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/users/{username}", s.handleGetUser)
	mux.HandleFunc("DELETE /api/users/me", s.handleDeleteSelf)

	mux.HandleFunc("GET /api/channels", s.handleListChannels)
	mux.HandleFunc("POST /api/channels", s.handleCreateChannel)
	mux.HandleFunc("DELETE /api/channels/{id}", s.handleDeleteChannel)
	mux.HandleFunc("GET /api/channels/{id}/messages", s.handleReadChannel)
	mux.HandleFunc("POST /api/channels/{id}/messages", s.handlePostChannel)

	mux.HandleFunc("GET /api/dm/{username}", s.handleReadThread)
	mux.HandleFunc("POST /api/dm/{username}", s.handlePostThread)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	var handler http.Handler = mux
	handler = s.Authenticate(handler)
	handler = c.Handler(handler)
	handler = s.Logger(handler)
	return handler
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}
