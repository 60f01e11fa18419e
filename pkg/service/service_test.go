package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/storage"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *storage.MemoryGateway
	issuer    *auth.Issuer
	users     *Users
	channels  *Channels
	messages  *ChannelMessages
	dms       *DirectMessages
	published *recordingPublisher
}

func newTestEnv(t *testing.T, opts ...MessageOption) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, storage.NewMemoryGateway(), opts...)
}

func newTestEnvWithStore(t *testing.T, mem *storage.MemoryGateway, opts ...MessageOption) *testEnv {
	t.Helper()
	return buildEnv(t, mem, mem, opts...)
}

func buildEnv(t *testing.T, mem *storage.MemoryGateway, store storage.Gateway, opts ...MessageOption) *testEnv {
	t.Helper()

	issuer, err := auth.NewIssuer("test-secret")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &recordingPublisher{}
	opts = append([]MessageOption{WithPublisher(pub)}, opts...)

	return &testEnv{
		store:     mem,
		issuer:    issuer,
		users:     NewUsers(store, issuer, logger),
		channels:  NewChannels(store, logger),
		messages:  NewChannelMessages(store, access.NewDecider(store), logger, opts...),
		dms:       NewDirectMessages(store, logger, opts...),
		published: pub,
	}
}

type publishedEvent struct {
	topic string
	data  []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(topic string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, data: data})
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// faultyGateway fails the operations selected by its predicates and passes
// everything else through.
type faultyGateway struct {
	storage.Gateway
	failPut    func(keyspace.Key) bool
	failDelete func(keyspace.Key) bool
	failQuery  bool
}

func unavailable(op string) error {
	return fmt.Errorf("failed to %s: %w: connection refused", op, apperr.ErrStoreUnavailable)
}

func (f *faultyGateway) Put(ctx context.Context, key keyspace.Key, attrs storage.Attributes) error {
	if f.failPut != nil && f.failPut(key) {
		return unavailable("put item")
	}
	return f.Gateway.Put(ctx, key, attrs)
}

func (f *faultyGateway) Delete(ctx context.Context, key keyspace.Key) error {
	if f.failDelete != nil && f.failDelete(key) {
		return unavailable("delete item")
	}
	return f.Gateway.Delete(ctx, key)
}

func (f *faultyGateway) Query(ctx context.Context, partition, prefix string) ([]storage.Item, error) {
	if f.failQuery {
		return nil, unavailable("query")
	}
	return f.Gateway.Query(ctx, partition, prefix)
}

func isKind(kind keyspace.Kind) func(keyspace.Key) bool {
	return func(k keyspace.Key) bool { return k.Kind() == kind }
}

// fixedClock returns the same instant on every call.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func identity(username string) *auth.Identity {
	return &auth.Identity{UserID: "id-" + username, Username: username}
}
