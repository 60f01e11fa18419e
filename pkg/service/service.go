// Package service implements the chat use cases on top of the store gateway
// and the access decider: user accounts, channels, channel messages and
// direct messages.
//
// Every operation takes the caller's verified identity explicitly (nil for
// an anonymous caller) and reports failures as errors matching the
// sentinels in package apperr.
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/storage"
)

// Publisher fans realtime events out to subscribers of a topic.
type Publisher interface {
	Publish(topic string, data []byte)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, []byte) {}

// ChannelTopic is the realtime topic of a channel's messages.
func ChannelTopic(channelID string) string {
	return "channel:" + channelID
}

// ThreadTopic is the realtime topic of the DM thread between a and b. It
// does not depend on argument order.
func ThreadTopic(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + "#" + b
}

// stampClock hands out strictly increasing millisecond stamps for message
// sort keys. Stamps are unique within one process only; two processes
// writing to the same partition in the same millisecond still collide.
type stampClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newStampClock(now func() time.Time) *stampClock {
	if now == nil {
		now = time.Now
	}
	return &stampClock{now: now}
}

func (c *stampClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := keyspace.StampOf(c.now())
	if stamp <= c.last {
		stamp = c.last + 1
	}
	c.last = stamp
	return stamp
}

// marshal encodes a record as item attributes.
func marshal(record any) (storage.Attributes, error) {
	attrs, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", record, err)
	}
	return attrs, nil
}

// unmarshal decodes item attributes into a record of type T.
func unmarshal[T any](item *storage.Item) (T, error) {
	var record T
	if err := attributevalue.UnmarshalMap(item.Attributes, &record); err != nil {
		return record, fmt.Errorf("failed to unmarshal %T: %w", record, err)
	}
	return record, nil
}

// invalid wraps a rejected input as apperr.ErrInvalidOperation.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrInvalidOperation, err)
}
