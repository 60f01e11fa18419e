package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret", WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return i
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("")
	assert.Error(t, err)
}

func TestIssuer_IssueVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(t, now)

	token, err := i.Issue("u-1", "alice")
	require.NoError(t, err)

	id, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u-1", Username: "alice"}, id)
}

func TestIssuer_Expiry(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := newTestIssuer(t, issuedAt).Issue("u-1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just issued", issuedAt, false},
		{"six days later", issuedAt.Add(6 * 24 * time.Hour), false},
		{"after seven days", issuedAt.Add(DefaultTokenTTL + time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestIssuer(t, tt.at).Verify(token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIssuer_TTLCeiling(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ttl      time.Duration
		validFor time.Duration
	}{
		{"shorter ttl applies", time.Hour, time.Hour},
		{"longer ttl is capped", 30 * 24 * time.Hour, DefaultTokenTTL},
		{"zero keeps default", 0, DefaultTokenTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, err := NewIssuer("test-secret", WithTTL(tt.ttl), WithClock(func() time.Time { return issuedAt }))
			require.NoError(t, err)
			token, err := issuer.Issue("u-1", "alice")
			require.NoError(t, err)

			_, err = newTestIssuer(t, issuedAt.Add(tt.validFor-time.Second)).Verify(token)
			assert.NoError(t, err)

			_, err = newTestIssuer(t, issuedAt.Add(tt.validFor+time.Second)).Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_VerifyRejects(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(t, now)

	other, err := NewIssuer("other-secret")
	require.NoError(t, err)
	foreign, err := other.Issue("u-1", "alice")
	require.NoError(t, err)

	valid, err := i.Issue("u-1", "alice")
	require.NoError(t, err)
	tampered := valid + "A"

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:   "u-1",
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u-1", Username: "alice"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	missingUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":            "",
		"garbage":          "not-a-token",
		"three dots":       "a.b.c",
		"foreign secret":   foreign,
		"tampered":         tampered,
		"alg none":         noneToken,
		"no expiry":        noExpiry,
		"missing username": missingUser,
		"huge":             strings.Repeat("x", 10000),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			id, err := i.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Equal(t, Identity{}, id)
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", hash)

	assert.NoError(t, ComparePassword(hash, "pw123456"))
	assert.ErrorIs(t, ComparePassword(hash, "wrongpw"), ErrPasswordMismatch)
	assert.Error(t, ComparePassword("not-a-hash", "pw123456"))

	_, err = HashPassword(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ctx = WithIdentity(ctx, Identity{UserID: "u-1", Username: "alice"})
	id := FromContext(ctx)
	require.NotNil(t, id)
	assert.Equal(t, "alice", id.Username)
}
