package storage

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/keyspace"
)

// MemoryGateway is an in-process Gateway backed by a map. It honours the
// same key encoding and ordering rules as DynamoDBGateway and is used for
// tests and for running the server without DynamoDB.
type MemoryGateway struct {
	mu         sync.RWMutex
	partitions map[string]map[string]Item
}

// NewMemoryGateway returns an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		partitions: make(map[string]map[string]Item),
	}
}

func (m *MemoryGateway) Get(ctx context.Context, key keyspace.Key) (*Item, error) {
	pk, sk, err := keyspace.Encode(key)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.partitions[pk][sk]
	if !ok {
		return nil, nil //nolint:nilnil
	}
	return &Item{Key: item.Key, Attributes: maps.Clone(item.Attributes)}, nil
}

func (m *MemoryGateway) Put(ctx context.Context, key keyspace.Key, attrs Attributes) error {
	pk, sk, err := keyspace.Encode(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store(pk, sk, key, attrs)
	return nil
}

func (m *MemoryGateway) Create(ctx context.Context, key keyspace.Key, attrs Attributes) error {
	pk, sk, err := keyspace.Encode(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.partitions[pk][sk]; exists {
		return fmt.Errorf("item %s/%s already exists: %w", pk, sk, apperr.ErrConflict)
	}
	m.store(pk, sk, key, attrs)
	return nil
}

func (m *MemoryGateway) Delete(ctx context.Context, key keyspace.Key) error {
	pk, sk, err := keyspace.Encode(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if partition, ok := m.partitions[pk]; ok {
		delete(partition, sk)
		if len(partition) == 0 {
			delete(m.partitions, pk)
		}
	}
	return nil
}

func (m *MemoryGateway) Query(ctx context.Context, partition, sortKeyPrefix string) ([]Item, error) {
	if partition == "" {
		return nil, fmt.Errorf("%w: empty partition", keyspace.ErrMalformedKey)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.partitions[partition]
	sortKeys := make([]string, 0, len(stored))
	for sk := range stored {
		if strings.HasPrefix(sk, sortKeyPrefix) {
			sortKeys = append(sortKeys, sk)
		}
	}
	sort.Strings(sortKeys)

	items := make([]Item, 0, len(sortKeys))
	for _, sk := range sortKeys {
		item := stored[sk]
		items = append(items, Item{Key: item.Key, Attributes: maps.Clone(item.Attributes)})
	}
	return items, nil
}

func (m *MemoryGateway) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryGateway) Close() error {
	return nil
}

// Len returns the number of stored items.
func (m *MemoryGateway) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, partition := range m.partitions {
		n += len(partition)
	}
	return n
}

func (m *MemoryGateway) store(pk, sk string, key keyspace.Key, attrs Attributes) {
	partition, ok := m.partitions[pk]
	if !ok {
		partition = make(map[string]Item)
		m.partitions[pk] = partition
	}

	clean := make(Attributes, len(attrs))
	for name, value := range attrs {
		if name == AttrPartitionKey || name == AttrSortKey {
			continue
		}
		clean[name] = value
	}
	partition[sk] = Item{Key: key, Attributes: clean}
}
