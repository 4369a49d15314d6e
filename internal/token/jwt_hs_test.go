package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHSProvider_RoundTrip(t *testing.T) {
	p := NewHSProvider("secret", "orderhub-auth", "orderhub")
	uid := uuid.New()

	tok, exp, err := p.SignAccess(context.Background(), uid, "ROLE_ADMIN", "admin@example.com", 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	c, err := p.ParseAndValidateAccess(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, uid, c.UserID)
	assert.Equal(t, "ROLE_ADMIN", c.Role)
	assert.Equal(t, "admin@example.com", c.Email)
}

func TestHSProvider_Rejects(t *testing.T) {
	p := NewHSProvider("secret", "orderhub-auth", "orderhub")
	uid := uuid.New()
	ctx := context.Background()

	other := NewHSProvider("other", "orderhub-auth", "orderhub")
	tok, _, err := other.SignAccess(ctx, uid, "ROLE_CUSTOMER", "", time.Minute)
	require.NoError(t, err)
	_, err = p.ParseAndValidateAccess(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := NewHSProvider("secret", "orderhub-auth", "another-audience")
	tok, _, err = foreign.SignAccess(ctx, uid, "ROLE_CUSTOMER", "", time.Minute)
	require.NoError(t, err)
	_, err = p.ParseAndValidateAccess(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewHSProvider("secret", "orderhub-auth", "orderhub")
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err = past.SignAccess(ctx, uid, "ROLE_CUSTOMER", "", time.Minute)
	require.NoError(t, err)
	_, err = p.ParseAndValidateAccess(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uid.String(),
		Issuer:    "orderhub-auth",
		Audience:  []string{"orderhub"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.ParseAndValidateAccess(ctx, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.ParseAndValidateAccess(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
