package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/epw80/channel-chat/pkg/storage"
	"github.com/google/uuid"
)

// Channels manages channel metadata.
type Channels struct {
	store  storage.Gateway
	logger *slog.Logger
}

// NewChannels creates the channel service.
func NewChannels(store storage.Gateway, logger *slog.Logger) *Channels {
	return &Channels{store: store, logger: logger}
}

// Create adds a channel with a fresh time-ordered id. Requires a verified
// identity.
func (c *Channels) Create(ctx context.Context, name string, isLocked bool, id *auth.Identity) (*message.Channel, error) {
	if id == nil {
		return nil, fmt.Errorf("create channel: %w", apperr.ErrUnauthenticated)
	}

	channelID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate channel id: %w", err)
	}

	ch := message.Channel{ID: channelID.String(), Name: name, IsLocked: isLocked}

	attrs, err := marshal(ch)
	if err != nil {
		return nil, err
	}
	if err := c.store.Create(ctx, keyspace.Channel{ChannelID: ch.ID}, attrs); err != nil {
		return nil, err
	}

	c.logger.Info("Channel created",
		slog.String("channel_id", ch.ID),
		slog.String("name", name),
		slog.Bool("locked", isLocked),
		slog.String("by", id.Username),
	)

	return &ch, nil
}

// List returns the metadata of every channel. No messages are loaded.
func (c *Channels) List(ctx context.Context) ([]message.Channel, error) {
	items, err := c.store.Query(ctx, keyspace.ChannelListPartition, "")
	if err != nil {
		return nil, err
	}

	channels := make([]message.Channel, 0, len(items))
	for i := range items {
		key, ok := items[i].Key.(keyspace.Channel)
		if !ok {
			continue
		}
		ch, err := unmarshal[message.Channel](&items[i])
		if err != nil {
			return nil, err
		}
		ch.ID = key.ChannelID
		channels = append(channels, ch)
	}
	return channels, nil
}

// Get returns one channel's metadata.
func (c *Channels) Get(ctx context.Context, channelID string) (*message.Channel, error) {
	if keyspace.ValidateID(channelID) != nil {
		return nil, fmt.Errorf("channel %q: %w", channelID, apperr.ErrNotFound)
	}

	item, err := c.store.Get(ctx, keyspace.Channel{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("channel %q: %w", channelID, apperr.ErrNotFound)
	}

	ch, err := unmarshal[message.Channel](item)
	if err != nil {
		return nil, err
	}
	ch.ID = channelID
	return &ch, nil
}

// Delete removes a channel. Any verified user may delete any channel; the
// channel's messages are left in place.
func (c *Channels) Delete(ctx context.Context, channelID string, id *auth.Identity) error {
	if id == nil {
		return fmt.Errorf("delete channel: %w", apperr.ErrUnauthenticated)
	}

	if _, err := c.Get(ctx, channelID); err != nil {
		return err
	}

	if err := c.store.Delete(ctx, keyspace.Channel{ChannelID: channelID}); err != nil {
		return err
	}

	c.logger.Info("Channel deleted",
		slog.String("channel_id", channelID),
		slog.String("by", id.Username),
	)
	return nil
}
