package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an issued credential. There is no
// refresh: once it lapses the user logs in again.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned by Verify for every kind of rejected
// credential: bad signature, malformed payload, wrong algorithm or expiry.
var ErrInvalidToken = errors.New("invalid token")

// Identity is a verified caller.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Claims is the signed payload of a credential.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer credentials with a shared secret.
// It holds no per-credential state and is safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises an Issuer.
type IssuerOption func(*Issuer)

// WithTTL shortens the credential lifetime. DefaultTokenTTL is also the
// ceiling: longer or non-positive values leave it in place.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 && ttl <= DefaultTokenTTL {
			i.ttl = ttl
		}
	}
}

// WithClock sets the time source used for issuing and verifying. Intended
// for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer returns an Issuer using secret as the HMAC key.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}

	i := &Issuer{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Issue returns a signed credential binding userID and username.
func (i *Issuer) Issue(userID, username string) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the credential and returns the identity it binds. It never
// panics on malformed input.
func (i *Issuer) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	if claims.UserID == "" || claims.Username == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
