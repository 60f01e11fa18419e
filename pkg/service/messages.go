package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/epw80/channel-chat/pkg/storage"
)

// MessageOption customises ChannelMessages and DirectMessages.
type MessageOption func(*messageBase)

// WithPublisher delivers every stored message to realtime subscribers.
func WithPublisher(p Publisher) MessageOption {
	return func(b *messageBase) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithClock sets the time source for message stamps.
func WithClock(now func() time.Time) MessageOption {
	return func(b *messageBase) {
		b.clock = newStampClock(now)
	}
}

type messageBase struct {
	store     storage.Gateway
	clock     *stampClock
	publisher Publisher
	logger    *slog.Logger
}

func newMessageBase(store storage.Gateway, logger *slog.Logger, opts []MessageOption) messageBase {
	b := messageBase{
		store:     store,
		clock:     newStampClock(nil),
		publisher: noopPublisher{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *messageBase) publish(topic string, event *message.Event) {
	data, err := event.ToJSON()
	if err != nil {
		b.logger.Error("Failed to encode event", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	b.publisher.Publish(topic, data)
}

// ChannelHistory is the result of reading a channel.
type ChannelHistory struct {
	Channel  access.ChannelInfo       `json:"channel"`
	Messages []message.ChannelMessage `json:"messages"`
}

// ChannelMessages reads and posts channel messages.
type ChannelMessages struct {
	messageBase
	decider *access.Decider
}

// NewChannelMessages creates the channel message service.
func NewChannelMessages(store storage.Gateway, decider *access.Decider, logger *slog.Logger, opts ...MessageOption) *ChannelMessages {
	return &ChannelMessages{
		messageBase: newMessageBase(store, logger, opts),
		decider:     decider,
	}
}

// Read returns a channel's messages in chronological order. An anonymous
// caller reading a private channel gets an *access.LockedError carrying the
// channel's metadata instead.
func (s *ChannelMessages) Read(ctx context.Context, channelID string, id *auth.Identity) (*ChannelHistory, error) {
	grant, err := s.decider.AuthorizeChannel(ctx, channelID, id, access.Read)
	if err != nil {
		return nil, err
	}

	items, err := s.store.Query(ctx, keyspace.ChannelMessagesPartition(channelID), keyspace.MessagePrefix)
	if err != nil {
		return nil, err
	}

	messages := make([]message.ChannelMessage, 0, len(items))
	for i := range items {
		key, ok := items[i].Key.(keyspace.ChannelMessage)
		if !ok {
			continue
		}
		msg, err := unmarshal[message.ChannelMessage](&items[i])
		if err != nil {
			return nil, err
		}
		_, msg.ID = key.Encode()
		msg.ChannelID = channelID
		messages = append(messages, msg)
	}

	return &ChannelHistory{Channel: grant.Channel, Messages: messages}, nil
}

// Post appends a message to a channel, attributed to the caller or to
// message.GuestSender on a public channel.
func (s *ChannelMessages) Post(ctx context.Context, channelID, text string, id *auth.Identity) (*message.ChannelMessage, error) {
	grant, err := s.decider.AuthorizeChannel(ctx, channelID, id, access.Write)
	if err != nil {
		return nil, err
	}

	if err := message.ValidateText(text); err != nil {
		return nil, invalid(err)
	}

	stamp := s.clock.Next()
	msg := message.ChannelMessage{
		ID:        keyspace.MessageSortKey(stamp),
		ChannelID: channelID,
		Text:      text,
		Sender:    grant.Attribution,
		Time:      keyspace.TimeOf(stamp),
	}

	attrs, err := marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, keyspace.ChannelMessage{ChannelID: channelID, Stamp: stamp}, attrs); err != nil {
		return nil, err
	}

	s.logger.Debug("Channel message stored",
		slog.String("channel_id", channelID),
		slog.String("sender", msg.Sender),
		slog.Int("length", len(text)),
	)

	topic := ChannelTopic(channelID)
	s.publish(topic, message.NewChannelMessageEvent(topic, msg))

	return &msg, nil
}

// Conversation is the result of reading a DM thread.
type Conversation struct {
	With         string                  `json:"with"`
	Participants []string                `json:"participants"`
	Messages     []message.DirectMessage `json:"messages"`
}

// DirectMessages reads and posts messages between two users.
type DirectMessages struct {
	messageBase
}

// NewDirectMessages creates the direct message service.
func NewDirectMessages(store storage.Gateway, logger *slog.Logger, opts ...MessageOption) *DirectMessages {
	return &DirectMessages{messageBase: newMessageBase(store, logger, opts)}
}

// Read returns the thread between the caller and other in chronological
// order. The same thread is returned whichever participant asks.
func (s *DirectMessages) Read(ctx context.Context, id *auth.Identity, other string) (*Conversation, error) {
	if _, err := access.AuthorizeDM(id, other, access.Read); err != nil {
		return nil, err
	}

	conv := &Conversation{
		With:         other,
		Participants: []string{id.Username, other},
		Messages:     []message.DirectMessage{},
	}

	// A thread with yourself or with an unaddressable name cannot exist.
	if other == id.Username || keyspace.ValidateID(other) != nil {
		return conv, nil
	}

	items, err := s.store.Query(ctx, keyspace.ThreadPartition(id.Username, other), keyspace.MessagePrefix)
	if err != nil {
		return nil, err
	}

	for i := range items {
		key, ok := items[i].Key.(keyspace.DirectMessage)
		if !ok {
			continue
		}
		msg, err := unmarshal[message.DirectMessage](&items[i])
		if err != nil {
			return nil, err
		}
		_, msg.ID = key.Encode()
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

// Post appends a message from the caller to other.
func (s *DirectMessages) Post(ctx context.Context, id *auth.Identity, other, text string) (*message.DirectMessage, error) {
	decision, err := access.AuthorizeDM(id, other, access.Write)
	if err != nil {
		return nil, err
	}
	if err := message.ValidateText(text); err != nil {
		return nil, invalid(err)
	}
	if err := keyspace.ValidateID(other); err != nil {
		return nil, invalid(fmt.Errorf("receiver: %w", err))
	}

	stamp := s.clock.Next()
	msg := message.DirectMessage{
		ID:       keyspace.MessageSortKey(stamp),
		Text:     text,
		Sender:   decision.Attribution,
		Receiver: other,
		Time:     keyspace.TimeOf(stamp),
	}

	attrs, err := marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, keyspace.NewDirectMessage(id.Username, other, stamp), attrs); err != nil {
		return nil, err
	}

	s.logger.Debug("Direct message stored",
		slog.String("sender", msg.Sender),
		slog.String("receiver", other),
	)

	topic := ThreadTopic(id.Username, other)
	s.publish(topic, message.NewDirectMessageEvent(topic, msg))

	return &msg, nil
}
