package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestJWTDecode(t *testing.T) {
	raw, err := Sign(secret, Identity{UserID: "adm_1", Role: "admin", SuperAdmin: true}, time.Hour)
	require.NoError(t, err)

	id, err := NewJWT(secret).DecodeToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "adm_1", id.UserID)
	assert.Equal(t, "admin", id.Role)
	assert.True(t, id.SuperAdmin)
}

func TestJWTRejects(t *testing.T) {
	expired, err := Sign(secret, Identity{UserID: "u"}, -time.Minute)
	require.NoError(t, err)

	wrongKey, err := Sign([]byte("other"), Identity{UserID: "u"}, time.Hour)
	require.NoError(t, err)

	noUser, err := Sign(secret, Identity{}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{ClaimUserID: "u"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"no user", noUser},
		{"unsigned", none},
	}

	dec := NewJWT(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.DecodeToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, IsAuthError(err), "expected AuthError, got %T", err)
		})
	}
}
