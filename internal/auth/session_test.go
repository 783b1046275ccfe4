package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	id := models.Identity{ID: uuid.New(), Name: "bob"}
	token, err := iss.CreateJWT(id)
	require.NoError(t, err)

	got, err := iss.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	token, err := other.CreateJWT(models.Identity{ID: uuid.New()})
	require.NoError(t, err)
	_, err = iss.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "signed by a different key")

	_, err = iss.AuthenticateJWT("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	token, err = iss.CreateJWT(models.Identity{ID: uuid.New()})
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "expired")
}

func TestJWTWithoutExpiry(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)
	id := models.Identity{ID: uuid.New()}
	token, err := iss.CreateJWT(id)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	got, err := iss.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)
}
