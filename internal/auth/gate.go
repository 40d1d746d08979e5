// Package auth implements the two bearer/session authentication modes
// described in spec.md §4.M. The SHA-256 token hashing and short-TTL
// in-memory user cache are grounded on the reference service's
// hashAPIKey/getUserFromCache pattern (salted SHA-256, patrickmn/go-cache
// with a 5 minute freshness window), generalized from a single Firebase
// user-profile lookup to a GORM-backed token/session store.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// ErrUnauthorized is returned for any missing, expired, or revoked
// credential, surfaced by callers as the 401 UNAUTHORIZED error code.
var ErrUnauthorized = errors.New("auth: unauthorized")

const userCacheTTL = 5 * time.Minute

// Identity is the resolved caller after a successful authentication.
type Identity struct {
	UserID string
}

// Gate validates bearer tokens and session cookies against GORM-backed
// tables, fronted by an in-process cache to avoid a DB round trip on every
// request.
type Gate struct {
	db       *gorm.DB
	apiSalt  string
	identityCache *cache.Cache
}

// New builds a Gate. apiTokenSalt is mixed into the SHA-256 hash before
// lookup, same defense-in-depth the teacher applies to its API keys.
func New(db *gorm.DB, apiTokenSalt string) *Gate {
	return &Gate{
		db:            db,
		apiSalt:       apiTokenSalt,
		identityCache: cache.New(userCacheTTL, 10*time.Minute),
	}
}

func (g *Gate) hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw + g.apiSalt))
	return hex.EncodeToString(sum[:])
}

// AuthenticateBearer validates a raw bearer token: hashes it, looks up a
// non-revoked non-expired APIToken row, and updates LastUsedAt on success.
func (g *Gate) AuthenticateBearer(rawToken string) (Identity, error) {
	hash := g.hashToken(rawToken)

	if cached, ok := g.identityCache.Get("bearer:" + hash); ok {
		return cached.(Identity), nil
	}

	var tok APIToken
	now := time.Now().UTC()
	err := g.db.Where("token_hash = ? AND revoked = ?", hash, false).First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup api token: %w", err)
	}
	if tok.ExpiresAt != nil && tok.ExpiresAt.Before(now) {
		return Identity{}, ErrUnauthorized
	}

	// Best-effort; a failed LastUsedAt update must never block authentication.
	_ = g.db.Model(&APIToken{}).Where("id = ?", tok.ID).Update("last_used_at", now).Error

	identity := Identity{UserID: tok.UserID}
	g.identityCache.Set("bearer:"+hash, identity, userCacheTTL)
	return identity, nil
}

// AuthenticateSession validates a session cookie value against the
// sessions table, requiring expires_at > now.
func (g *Gate) AuthenticateSession(sessionID string) (Identity, error) {
	if cached, ok := g.identityCache.Get("session:" + sessionID); ok {
		return cached.(Identity), nil
	}

	var sess Session
	err := g.db.Where("id = ? AND expires_at > ?", sessionID, time.Now().UTC()).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}

	identity := Identity{UserID: sess.UserID}
	g.identityCache.Set("session:"+sessionID, identity, userCacheTTL)
	return identity, nil
}
