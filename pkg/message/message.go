// Package message defines the records stored in the chat table and the
// events pushed to realtime subscribers.
package message

import (
	"encoding/json"
	"time"
)

// GuestSender is the attributed sender of an anonymous post to a public channel.
const GuestSender = "Guest"

// UserProfile is stored under USER#<username> / PROFILE.
type UserProfile struct {
	Username     string `json:"username" dynamodbav:"-"`
	UserID       string `json:"userId" dynamodbav:"userId"`
	Name         string `json:"name" dynamodbav:"name"`
	PasswordHash string `json:"-" dynamodbav:"passwordHash"`
}

// DirectoryEntry is stored under USERS / <username>.
type DirectoryEntry struct {
	Username string `json:"username" dynamodbav:"-"`
	UserID   string `json:"userId" dynamodbav:"userId"`
}

// Channel is stored under CHANNEL / <channelId>.
type Channel struct {
	ID       string `json:"id" dynamodbav:"-"`
	Name     string `json:"name" dynamodbav:"name"`
	IsLocked bool   `json:"isLocked" dynamodbav:"isLocked"`
}

// ChannelMessage is stored under CHANNEL#<channelId> / MSG#<stamp>.
type ChannelMessage struct {
	ID        string    `json:"id" dynamodbav:"-"`
	ChannelID string    `json:"channelId" dynamodbav:"-"`
	Text      string    `json:"text" dynamodbav:"text"`
	Sender    string    `json:"sender" dynamodbav:"sender"`
	Time      time.Time `json:"time" dynamodbav:"time"`
}

// DirectMessage is stored under DM#<low>#<high> / MSG#<stamp>.
type DirectMessage struct {
	ID       string    `json:"id" dynamodbav:"-"`
	Text     string    `json:"text" dynamodbav:"text"`
	Sender   string    `json:"sender" dynamodbav:"sender"`
	Receiver string    `json:"receiver" dynamodbav:"receiver"`
	Time     time.Time `json:"time" dynamodbav:"time"`
}

// EventType represents the kinds of realtime events
type EventType string

const (
	EventChannelMessage EventType = "channel_message"
	EventDirectMessage  EventType = "direct_message"
	EventError          EventType = "error"
)

// Event is pushed to websocket subscribers of a topic
type Event struct {
	Type           EventType       `json:"type"`
	Topic          string          `json:"topic,omitempty"`
	ChannelMessage *ChannelMessage `json:"channelMessage,omitempty"`
	DirectMessage  *DirectMessage  `json:"directMessage,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// NewChannelMessageEvent wraps a posted channel message
func NewChannelMessageEvent(topic string, msg ChannelMessage) *Event {
	return &Event{Type: EventChannelMessage, Topic: topic, ChannelMessage: &msg}
}

// NewDirectMessageEvent wraps a posted direct message
func NewDirectMessageEvent(topic string, msg DirectMessage) *Event {
	return &Event{Type: EventDirectMessage, Topic: topic, DirectMessage: &msg}
}

// NewErrorEvent reports a failed post back to the sending connection
func NewErrorEvent(text string) *Event {
	return &Event{Type: EventError, Error: text}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Post is a frame sent by a websocket client to post into its topic
type Post struct {
	Text string `json:"text"`
}

// PostFromJSON parses an inbound websocket frame
func PostFromJSON(data []byte) (*Post, error) {
	var p Post
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
