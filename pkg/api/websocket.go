package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/client"
	"github.com/epw80/channel-chat/pkg/service"
)

// handleWebSocket subscribes the connection to one channel (?channel=<id>)
// or to the caller's thread with another user (?dm=<username>). The same
// access decision as a read is made before upgrading. Frames the client
// sends are posted to the subscribed target as the caller.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	query := r.URL.Query()

	var (
		topic string
		post  client.PostFunc
	)

	switch {
	case query.Get("channel") != "":
		channelID := query.Get("channel")
		if _, err := s.decider.AuthorizeChannel(r.Context(), channelID, id, access.Read); err != nil {
			s.writeError(w, r, err)
			return
		}
		topic = service.ChannelTopic(channelID)
		post = func(ctx context.Context, text string) error {
			_, err := s.messages.Post(ctx, channelID, text, id)
			return err
		}

	case query.Get("dm") != "":
		other := query.Get("dm")
		if _, err := access.AuthorizeDM(id, other, access.Read); err != nil {
			s.writeError(w, r, err)
			return
		}
		topic = service.ThreadTopic(id.Username, other)
		post = func(ctx context.Context, text string) error {
			_, err := s.dms.Post(ctx, id, other, text)
			return err
		}

	default:
		badRequest(w, "channel or dm query parameter is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection",
			slog.String("error", err.Error()))
		return
	}

	username := ""
	if id != nil {
		username = id.Username
	}

	c := client.New(s.hub, conn, topic, username, post, s.logger)
	s.hub.Register(c)
	c.Start()

	s.logger.Info("new websocket connection",
		slog.String("topic", topic),
		slog.String("username", username),
		slog.String("clientID", c.ID()))
}
