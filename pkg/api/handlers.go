package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/message"
)

const healthTimeout = 2 * time.Second

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createChannelRequest struct {
	Name     string `json:"name"`
	IsLocked bool   `json:"isLocked"`
}

type postRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		status, code = "degraded", http.StatusServiceUnavailable
	}

	JSONResponse(w, code, Payload{
		Success: code == http.StatusOK,
		Data: map[string]any{
			"status":  status,
			"clients": s.hub.ClientCount(),
			"topics":  s.hub.TopicCount(),
		},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := message.ValidateUsername(req.Username); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := message.ValidatePassword(req.Password); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := message.ValidateLogin(req.Username, req.Password); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *Server) handleDeleteSelf(w http.ResponseWriter, r *http.Request) {
	if err := s.users.DeleteSelf(r.Context(), auth.FromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, Payload{Success: true, Message: "Account deleted"})
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.channels.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, channels)
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var req createChannelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := message.ValidateChannelName(req.Name); err != nil {
		badRequest(w, err.Error())
		return
	}

	ch, err := s.channels.Create(r.Context(), req.Name, req.IsLocked, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, ch)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if err := message.ValidateChannelID(channelID); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := s.channels.Delete(r.Context(), channelID, auth.FromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, Payload{Success: true, Message: "Channel deleted"})
}

func (s *Server) handleReadChannel(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if err := message.ValidateChannelID(channelID); err != nil {
		badRequest(w, err.Error())
		return
	}

	history, err := s.messages.Read(r.Context(), channelID, auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, history)
}

func (s *Server) handlePostChannel(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if err := message.ValidateChannelID(channelID); err != nil {
		badRequest(w, err.Error())
		return
	}

	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := message.ValidateText(req.Text); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := s.messages.Post(r.Context(), channelID, req.Text, auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, msg)
}

func (s *Server) handleReadThread(w http.ResponseWriter, r *http.Request) {
	conv, err := s.dms.Read(r.Context(), auth.FromContext(r.Context()), r.PathValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, conv)
}

func (s *Server) handlePostThread(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := message.ValidateText(req.Text); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := s.dms.Post(r.Context(), auth.FromContext(r.Context()), r.PathValue("username"), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, msg)
}
