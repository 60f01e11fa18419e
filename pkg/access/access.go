// Package access decides whether a caller may read or post to a channel or a
// direct message thread, and which name a post is attributed to.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/epw80/channel-chat/pkg/storage"
)

// Visibility of a channel.
type Visibility int

const (
	Public Visibility = iota
	Private
)

// VisibilityOf maps a channel's isLocked flag to its visibility.
func VisibilityOf(isLocked bool) Visibility {
	if isLocked {
		return Private
	}
	return Public
}

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// Operation is what the caller wants to do with a channel or thread.
type Operation int

const (
	Read Operation = iota
	Write
)

func (o Operation) String() string {
	if o == Write {
		return "write"
	}
	return "read"
}

// Decision is an allowed access.
type Decision struct {
	// Attribution is the sender name recorded for a post: the caller's
	// username, or message.GuestSender for an anonymous caller.
	Attribution string
	// Identity is the verified caller, nil when anonymous.
	Identity *auth.Identity
}

// Decide applies the channel access table. Public channels admit everyone;
// private channels require a verified identity.
func Decide(vis Visibility, id *auth.Identity, op Operation) (Decision, error) {
	if id != nil {
		return Decision{Attribution: id.Username, Identity: id}, nil
	}
	if vis == Private {
		return Decision{}, fmt.Errorf("%s on private channel: %w", op, apperr.ErrUnauthenticated)
	}
	return Decision{Attribution: message.GuestSender}, nil
}

// ChannelInfo is the public metadata of a channel, safe to show to a caller
// who may not read its messages.
type ChannelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

// LockedError is returned when an anonymous caller targets a private
// channel. It matches apperr.ErrUnauthenticated.
type LockedError struct {
	Channel ChannelInfo
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("channel %q requires authentication", e.Channel.ID)
}

func (e *LockedError) Unwrap() error {
	return apperr.ErrUnauthenticated
}

// Grant is an allowed channel access together with the channel it applies to.
type Grant struct {
	Decision
	Channel ChannelInfo
}

// Decider resolves channel visibility from the store on every call. Nothing
// is cached between calls.
type Decider struct {
	store storage.Gateway
}

// NewDecider creates a Decider reading channel metadata from store.
func NewDecider(store storage.Gateway) *Decider {
	return &Decider{store: store}
}

// AuthorizeChannel fetches the channel and applies Decide to it.
//
// Returns an error matching apperr.ErrNotFound when the channel does not
// exist, and a *LockedError when it exists but requires authentication.
func (d *Decider) AuthorizeChannel(ctx context.Context, channelID string, id *auth.Identity, op Operation) (Grant, error) {
	if err := keyspace.ValidateID(channelID); err != nil {
		return Grant{}, fmt.Errorf("channel %q: %w", channelID, apperr.ErrNotFound)
	}

	item, err := d.store.Get(ctx, keyspace.Channel{ChannelID: channelID})
	if err != nil {
		return Grant{}, err
	}
	if item == nil {
		return Grant{}, fmt.Errorf("channel %q: %w", channelID, apperr.ErrNotFound)
	}

	var ch message.Channel
	if err := attributevalue.UnmarshalMap(item.Attributes, &ch); err != nil {
		return Grant{}, fmt.Errorf("failed to unmarshal channel %q: %w", channelID, err)
	}

	info := ChannelInfo{ID: channelID, Name: ch.Name, IsPrivate: ch.IsLocked}

	decision, err := Decide(VisibilityOf(ch.IsLocked), id, op)
	if err != nil {
		return Grant{}, &LockedError{Channel: info}
	}
	return Grant{Decision: decision, Channel: info}, nil
}

// AuthorizeDM checks access to the thread between the caller and other.
// Every thread operation requires a verified identity, and nobody may write
// to themselves.
func AuthorizeDM(id *auth.Identity, other string, op Operation) (Decision, error) {
	if id == nil {
		return Decision{}, fmt.Errorf("direct message %s: %w", op, apperr.ErrUnauthenticated)
	}
	if op == Write && id.Username == other {
		return Decision{}, fmt.Errorf("cannot send message to yourself: %w", apperr.ErrInvalidOperation)
	}
	return Decision{Attribution: id.Username, Identity: id}, nil
}

// ChannelInfoOf extracts the channel metadata carried by a *LockedError.
func ChannelInfoOf(err error) (ChannelInfo, bool) {
	var locked *LockedError
	if errors.As(err, &locked) {
		return locked.Channel, true
	}
	return ChannelInfo{}, false
}
