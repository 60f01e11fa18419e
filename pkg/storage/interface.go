package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/epw80/channel-chat/pkg/keyspace"
)

// Attributes are the non-key attributes of an item.
type Attributes = map[string]types.AttributeValue

// Item is one stored record: its decoded key plus its non-key attributes.
type Item struct {
	Key        keyspace.Key
	Attributes Attributes
}

// Gateway defines the primitive operations on the chat table.
// Implementations should be safe for concurrent use.
//
// Every failure of the underlying store is reported as an error wrapping
// apperr.ErrStoreUnavailable. No operation retries.
type Gateway interface {
	// Get returns the item stored under key, or nil if there is none.
	Get(ctx context.Context, key keyspace.Key) (*Item, error)

	// Put writes the item, replacing any item with the same key.
	Put(ctx context.Context, key keyspace.Key, attrs Attributes) error

	// Create writes the item only if no item with the same key exists.
	// Returns an error wrapping apperr.ErrConflict otherwise.
	Create(ctx context.Context, key keyspace.Key, attrs Attributes) error

	// Delete removes the item. Deleting an absent item is not an error.
	Delete(ctx context.Context, key keyspace.Key) error

	// Query returns every item in the partition whose sort key starts with
	// sortKeyPrefix (all items when empty), in ascending sort key order.
	Query(ctx context.Context, partition, sortKeyPrefix string) ([]Item, error)

	// HealthCheck verifies the storage backend is accessible and operational.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the gateway.
	Close() error
}
