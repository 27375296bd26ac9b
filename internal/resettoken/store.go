// Package resettoken issues and redeems short-lived, single-use password
// reset tokens. Tokens are opaque random strings held in an expiring
// in-memory cache; they are never persisted.
package resettoken

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

type target struct {
	TenantID string
	UserID   string
}

type Store struct {
	tokens *cache.Cache
}

// NewStore returns a store whose tokens expire after ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{tokens: cache.New(ttl, ttl)}
}

// Issue mints a reset token for the user and returns it.
func (s *Store) Issue(tenantID, userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "[resettoken.Issue] rand.Read")
	}
	tok := hex.EncodeToString(raw)
	s.tokens.SetDefault(tok, target{TenantID: tenantID, UserID: userID})
	return tok, nil
}

// Redeem resolves and consumes a token. A token redeems at most once.
func (s *Store) Redeem(tok string) (tenantID, userID string, ok bool) {
	v, found := s.tokens.Get(tok)
	if !found {
		return "", "", false
	}
	s.tokens.Delete(tok)
	t := v.(target)
	return t.TenantID, t.UserID, true
}
