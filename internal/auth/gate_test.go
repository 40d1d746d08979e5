package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&APIToken{}, &Session{}))
	return New(gdb, "test-salt")
}

func TestAuthenticateBearer_ValidToken(t *testing.T) {
	g := newTestGate(t)
	hash := g.hashToken("raw-token-123")
	require.NoError(t, g.db.Create(&APIToken{UserID: "user-1", TokenHash: hash}).Error)

	id, err := g.AuthenticateBearer("raw-token-123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
}

func TestAuthenticateBearer_RevokedRejected(t *testing.T) {
	g := newTestGate(t)
	hash := g.hashToken("raw-token-456")
	require.NoError(t, g.db.Create(&APIToken{UserID: "user-2", TokenHash: hash, Revoked: true}).Error)

	_, err := g.AuthenticateBearer("raw-token-456")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateBearer_ExpiredRejected(t *testing.T) {
	g := newTestGate(t)
	past := time.Now().Add(-time.Hour)
	hash := g.hashToken("raw-token-789")
	require.NoError(t, g.db.Create(&APIToken{UserID: "user-3", TokenHash: hash, ExpiresAt: &past}).Error)

	_, err := g.AuthenticateBearer("raw-token-789")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateBearer_UnknownRejected(t *testing.T) {
	g := newTestGate(t)
	_, err := g.AuthenticateBearer("never-issued")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateSession_ValidAndExpired(t *testing.T) {
	g := newTestGate(t)
	require.NoError(t, g.db.Create(&Session{ID: "sess-1", UserID: "user-4", ExpiresAt: time.Now().Add(time.Hour)}).Error)
	require.NoError(t, g.db.Create(&Session{ID: "sess-2", UserID: "user-5", ExpiresAt: time.Now().Add(-time.Hour)}).Error)

	id, err := g.AuthenticateSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-4", id.UserID)

	_, err = g.AuthenticateSession("sess-2")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
