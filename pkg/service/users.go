package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/keyspace"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/epw80/channel-chat/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Session is returned by a successful register or login.
type Session struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

// Users manages accounts.
type Users struct {
	store  storage.Gateway
	issuer *auth.Issuer
	logger *slog.Logger
}

// NewUsers creates the account service.
func NewUsers(store storage.Gateway, issuer *auth.Issuer, logger *slog.Logger) *Users {
	return &Users{store: store, issuer: issuer, logger: logger}
}

// Register creates an account and signs the user in.
//
// The directory entry is written first with a conditional put and is the
// existence check: a taken username fails with apperr.ErrConflict and leaves
// the existing account untouched. If the profile write then fails the
// directory entry is deleted again, so the two records exist together or not
// at all.
func (u *Users) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := keyspace.ValidateID(username); err != nil {
		return nil, invalid(err)
	}

	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, invalid(err)
	}
	if err != nil {
		return nil, err
	}

	userID := uuid.NewString()

	entry, err := marshal(message.DirectoryEntry{UserID: userID})
	if err != nil {
		return nil, err
	}
	if err := u.store.Create(ctx, keyspace.UserDirectory{Username: username}, entry); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("username %q: %w", username, err)
		}
		return nil, err
	}

	profile, err := marshal(message.UserProfile{UserID: userID, Name: username, PasswordHash: hash})
	if err == nil {
		err = u.store.Put(ctx, keyspace.UserProfile{Username: username}, profile)
	}
	if err != nil {
		u.compensate(ctx, username)
		return nil, err
	}

	u.logger.Info("User registered",
		slog.String("username", username),
		slog.String("user_id", userID),
	)

	return u.session(userID, username)
}

// compensate removes a directory entry whose profile could not be written.
func (u *Users) compensate(ctx context.Context, username string) {
	if err := u.store.Delete(context.WithoutCancel(ctx), keyspace.UserDirectory{Username: username}); err != nil {
		u.logger.Error("Failed to remove orphaned directory entry",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return
	}
	u.logger.Warn("Registration rolled back", slog.String("username", username))
}

// Login verifies a password and issues a credential. Unknown users and
// wrong passwords fail identically with apperr.ErrInvalidCredentials.
func (u *Users) Login(ctx context.Context, username, password string) (*Session, error) {
	if keyspace.ValidateID(username) != nil {
		burnCompare(password)
		return nil, apperr.ErrInvalidCredentials
	}

	item, err := u.store.Get(ctx, keyspace.UserProfile{Username: username})
	if err != nil {
		return nil, err
	}
	if item == nil {
		burnCompare(password)
		return nil, apperr.ErrInvalidCredentials
	}

	profile, err := unmarshal[message.UserProfile](item)
	if err != nil {
		return nil, err
	}

	if err := auth.ComparePassword(profile.PasswordHash, password); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	return u.session(profile.UserID, username)
}

func (u *Users) session(userID, username string) (*Session, error) {
	token, err := u.issuer.Issue(userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, User: auth.Identity{UserID: userID, Username: username}}, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnCompare spends the same time on an unknown user as a password check
// would, so response timing does not reveal which usernames exist.
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	_ = auth.ComparePassword(dummyHash, password)
}

// ListAll returns every directory entry in username order.
func (u *Users) ListAll(ctx context.Context) ([]message.DirectoryEntry, error) {
	items, err := u.store.Query(ctx, keyspace.UserDirectoryPartition, "")
	if err != nil {
		return nil, err
	}

	users := make([]message.DirectoryEntry, 0, len(items))
	for i := range items {
		key, ok := items[i].Key.(keyspace.UserDirectory)
		if !ok {
			continue
		}
		entry, err := unmarshal[message.DirectoryEntry](&items[i])
		if err != nil {
			return nil, err
		}
		entry.Username = key.Username
		users = append(users, entry)
	}
	return users, nil
}

// Get returns the public part of one user's profile.
func (u *Users) Get(ctx context.Context, username string) (*message.DirectoryEntry, error) {
	if keyspace.ValidateID(username) != nil {
		return nil, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
	}

	item, err := u.store.Get(ctx, keyspace.UserProfile{Username: username})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
	}

	profile, err := unmarshal[message.UserProfile](item)
	if err != nil {
		return nil, err
	}
	return &message.DirectoryEntry{Username: username, UserID: profile.UserID}, nil
}

// DeleteSelf removes the caller's own profile and directory entry. Messages
// the caller sent are kept.
func (u *Users) DeleteSelf(ctx context.Context, id *auth.Identity) error {
	if id == nil {
		return fmt.Errorf("delete account: %w", apperr.ErrUnauthenticated)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return u.store.Delete(gctx, keyspace.UserProfile{Username: id.Username})
	})
	g.Go(func() error {
		return u.store.Delete(gctx, keyspace.UserDirectory{Username: id.Username})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	u.logger.Info("User deleted", slog.String("username", id.Username))
	return nil
}
