// Package identity decodes bearer tokens into the caller's identity.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is a decoded caller.
type Identity struct {
	UserID     string
	Email      string
	Role       string
	SuperAdmin bool
}

// AuthError reports an invalid, expired or malformed token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Reason, e.Err)
	}
	return "identity: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Decoder turns a raw token into an Identity.
type Decoder interface {
	DecodeToken(ctx context.Context, token string) (*Identity, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, token string) (*Identity, error)

// DecodeToken implements Decoder.
func (f DecoderFunc) DecodeToken(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// Claim names read from tokens.
const (
	ClaimUserID     = "user_id"
	ClaimEmail      = "email"
	ClaimRole       = "role"
	ClaimSuperAdmin = "super_admin"
)

// JWT decodes HMAC-signed tokens.
type JWT struct {
	secret []byte
	now    func() time.Time
}

var _ Decoder = (*JWT)(nil)

// NewJWT returns a decoder for tokens signed with secret.
func NewJWT(secret []byte) *JWT {
	return &JWT{secret: secret, now: time.Now}
}

// DecodeToken implements Decoder.
func (j *JWT) DecodeToken(_ context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, &AuthError{Reason: "missing token"}
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &AuthError{Reason: "token expired", Err: err}
		}
		return nil, &AuthError{Reason: "invalid token", Err: err}
	}
	if !token.Valid {
		return nil, &AuthError{Reason: "invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &AuthError{Reason: "invalid token claims"}
	}

	userID, _ := claims[ClaimUserID].(string)
	if userID == "" {
		return nil, &AuthError{Reason: "token has no user"}
	}
	email, _ := claims[ClaimEmail].(string)
	role, _ := claims[ClaimRole].(string)
	super, _ := claims[ClaimSuperAdmin].(bool)

	return &Identity{UserID: userID, Email: email, Role: role, SuperAdmin: super}, nil
}

// Sign issues a token for id that expires after ttl. It is used by tools
// and tests; production tokens come from the identity service.
func Sign(secret []byte, id Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		ClaimUserID:     id.UserID,
		ClaimEmail:      id.Email,
		ClaimRole:       id.Role,
		ClaimSuperAdmin: id.SuperAdmin,
		"exp":           time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}
