package service

import (
	"context"
	"strings"
	"testing"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_RegisterLoginScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.users.Register(ctx, "alice", "pw123456")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice", session.User.Username)
	assert.NotEmpty(t, session.User.UserID)

	verified, err := env.issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User, verified)

	_, err = env.users.Register(ctx, "alice", "anything")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = env.users.Login(ctx, "alice", "wrongpw")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	login, err := env.users.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "alice", login.User.Username)
	assert.Equal(t, session.User.UserID, login.User.UserID)
}

func TestUsers_LoginUnknownUserMatchesWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, "alice", "pw123456")
	require.NoError(t, err)

	_, errUnknown := env.users.Login(ctx, "mallory", "pw123456")
	_, errWrong := env.users.Login(ctx, "alice", "nope-nope")
	_, errReserved := env.users.Login(ctx, "a#b", "pw123456")

	require.Error(t, errUnknown)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Equal(t, apperr.Message(errWrong), apperr.Message(errUnknown))
	assert.ErrorIs(t, errReserved, apperr.ErrInvalidCredentials)
}

func TestUsers_RegisterReservedName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.Register(context.Background(), "profile", "pw123456")
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)
	assert.Equal(t, 0, env.store.Len())
}

func TestUsers_RegisterPasswordOverBcryptLimit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.Register(context.Background(), "alice", strings.Repeat("é", 40))
	assert.ErrorIs(t, err, apperr.ErrInvalidOperation)
	assert.Equal(t, apperr.KindInvalidOperation, apperr.KindOf(err))
	assert.Equal(t, 0, env.store.Len())
}

func TestUsers_RegisterCompensatesFailedProfileWrite(t *testing.T) {
	mem := storage.NewMemoryGateway()
	store := &faultyGateway{Gateway: mem, failPut: isKind(keyspace.KindUserProfile)}
	env := buildEnv(t, mem, store)
	ctx := context.Background()

	_, err := env.users.Register(ctx, "alice", "pw123456")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	entry, err := mem.Get(ctx, keyspace.UserDirectory{Username: "alice"})
	require.NoError(t, err)
	assert.Nil(t, entry, "directory entry must be rolled back")

	// The name is free again once the store recovers.
	store.failPut = nil
	_, err = env.users.Register(ctx, "alice", "pw123456")
	assert.NoError(t, err)
}

func TestUsers_ListAllAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := env.users.Register(ctx, name, "pw123456")
		require.NoError(t, err)
	}

	users, err := env.users.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, "carol", users[2].Username)
	for _, u := range users {
		assert.NotEmpty(t, u.UserID)
	}

	bob, err := env.users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, users[1], *bob)

	_, err = env.users.Get(ctx, "dave")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.users.Get(ctx, "USERS")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUsers_ListAllStoreUnavailable(t *testing.T) {
	mem := storage.NewMemoryGateway()
	env := buildEnv(t, mem, &faultyGateway{Gateway: mem, failQuery: true})

	_, err := env.users.ListAll(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.Equal(t, "Service temporarily unavailable", apperr.Message(err))
}

func TestUsers_DeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.users.Register(ctx, "alice", "pw123456")
	require.NoError(t, err)
	_, err = env.users.Register(ctx, "bob", "pw123456")
	require.NoError(t, err)

	err = env.users.DeleteSelf(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	require.NoError(t, env.users.DeleteSelf(ctx, &alice.User))

	_, err = env.users.Login(ctx, "alice", "pw123456")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	users, err := env.users.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)

	// Deleting twice is harmless.
	assert.NoError(t, env.users.DeleteSelf(ctx, &alice.User))
}

func TestUsers_DeleteSelfStoreUnavailable(t *testing.T) {
	mem := storage.NewMemoryGateway()
	store := &faultyGateway{Gateway: mem, failDelete: isKind(keyspace.KindUserDirectory)}
	env := buildEnv(t, mem, store)

	err := env.users.DeleteSelf(context.Background(), identity("alice"))
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
