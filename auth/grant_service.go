// Package auth implements the OAuth2 grant engine: it resolves client and
// user identity, verifies secrets, assembles claim payloads, and mints the
// access and refresh tokens. The engine holds no mutable state of its own;
// every operation is a function of its inputs plus store round-trips, and
// tokens reference identity state rather than caching it.
package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/clients"
	"github.com/nident/identity-server/hashing"
	"github.com/nident/identity-server/tenants"
	"github.com/nident/identity-server/token"
	"github.com/nident/identity-server/users"
)

// Reserved access-token claims carrying the authenticated identity. The
// users package rejects user claims under the same prefix at write time, so
// these can never be shadowed.
const (
	ClaimTenantID = users.ReservedClaimPrefix + "tenantId"
	ClaimLogin    = users.ReservedClaimPrefix + "login"
	ClaimUserID   = users.ReservedClaimPrefix + "userId"
)

// Refresh-token payload keys.
const (
	refreshClaimTenantID = "tenantId"
	refreshClaimClientID = "clientId"
	refreshClaimUserID   = "userId"
)

// Repos holds the identity store gateways the grant engine consumes.
type Repos struct {
	Tenants tenants.Repo
	Clients clients.Repo
	Users   users.Repo
}

// GrantService orchestrates the password and refresh_token grant flows.
type GrantService struct {
	repos                Repos
	hasher               *hashing.Hasher
	codec                *token.Codec
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
	nowTime              func() time.Time
}

type GrantServiceOption func(*GrantService)

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(now func() time.Time) GrantServiceOption {
	return func(gs *GrantService) {
		gs.nowTime = now
	}
}

func NewGrantService(
	repos Repos,
	hasher *hashing.Hasher,
	codec *token.Codec,
	accessTokenLifetime time.Duration,
	refreshTokenLifetime time.Duration,
	options ...GrantServiceOption,
) (*GrantService, error) {
	if repos.Tenants == nil {
		return nil, errors.New("[NewGrantService] Tenants repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewGrantService] Clients repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewGrantService] Users repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewGrantService] hasher is required")
	}
	if codec == nil {
		return nil, errors.New("[NewGrantService] codec is required")
	}
	if accessTokenLifetime <= 0 || refreshTokenLifetime <= 0 {
		return nil, errors.New("[NewGrantService] token lifetimes must be positive")
	}

	gs := &GrantService{
		repos:                repos,
		hasher:               hasher,
		codec:                codec,
		accessTokenLifetime:  accessTokenLifetime,
		refreshTokenLifetime: refreshTokenLifetime,
		nowTime:              time.Now,
	}
	for _, opt := range options {
		opt(gs)
	}
	return gs, nil
}

// Token handles one token request, dispatching on grant type.
func (gs *GrantService) Token(params TokenParameters) (*TokenResponse, error) {
	switch params.GrantType {
	case GrantTypePassword:
		return gs.passwordGrant(params)
	case GrantTypeRefreshToken:
		return gs.refreshGrant(params)
	default:
		return nil, errors.Wrapf(ErrInvalidGrant, "unsupported grant type %q", params.GrantType)
	}
}

func (gs *GrantService) passwordGrant(params TokenParameters) (*TokenResponse, error) {
	client, err := gs.resolveClient(params.ClientID, params.ClientSecret, GrantTypePassword)
	if err != nil {
		return nil, err
	}

	user, err := gs.resolveUser(client.TenantID, params.Username, params.Password)
	if err != nil {
		return nil, err
	}

	return gs.mintTokens(client, user)
}

func (gs *GrantService) refreshGrant(params TokenParameters) (*TokenResponse, error) {
	// Signature and structure are checked first with expiry ignored, so an
	// expired-but-genuine token gets a clean "expired" answer instead of a
	// generic invalid one.
	payload, err := gs.codec.VerifyIgnoringExpiry(params.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidGrant, "malformed refresh token")
	}

	exp, ok := token.Expiry(payload)
	if !ok {
		return nil, errors.Wrap(ErrInvalidGrant, "refresh token carries no expiry")
	}
	if !gs.nowTime().Before(exp) {
		return nil, errors.Wrap(ErrInvalidGrant, "refresh token expired")
	}

	tenantID, _ := payload[refreshClaimTenantID].(string)
	clientID, _ := payload[refreshClaimClientID].(string)
	userID, _ := payload[refreshClaimUserID].(string)
	if tenantID == "" || clientID == "" || userID == "" {
		return nil, errors.Wrap(ErrInvalidGrant, "refresh token payload incomplete")
	}
	if params.ClientID != clientID {
		return nil, errors.Wrap(ErrInvalidGrant, "refresh token was issued to a different client")
	}

	// Client and user are re-resolved from the store: a deleted or
	// deactivated client, a rotated secret, or a deleted user invalidates
	// every outstanding refresh token without a revocation list.
	client, err := gs.resolveClient(clientID, params.ClientSecret, GrantTypeRefreshToken)
	if err != nil {
		return nil, err
	}
	if client.TenantID != tenantID {
		return nil, errors.Wrap(ErrInvalidGrant, "refresh token tenant mismatch")
	}

	user, err := gs.repos.Users.GetByID(tenantID, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, errors.Wrap(ErrInvalidGrant, "user no longer exists")
		}
		return nil, errors.Wrap(err, "[GrantService.refreshGrant] Users.GetByID")
	}

	return gs.mintTokens(client, user)
}

// resolveClient validates the client before any key-derivation cost is
// paid: unknown and inactive clients are rejected cheaply.
func (gs *GrantService) resolveClient(clientID, clientSecret, grantType string) (*clients.Client, error) {
	client, err := gs.repos.Clients.Get(clientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return nil, errors.Wrap(ErrInvalidClient, "unknown client")
		}
		return nil, errors.Wrap(err, "[GrantService.resolveClient] Clients.Get")
	}
	if !client.Active {
		return nil, errors.Wrap(ErrInvalidClient, "client deactivated")
	}
	if !client.AllowsGrant(grantType) {
		return nil, errors.Wrapf(ErrUnauthorizedClient, "grant type %q not allowed", grantType)
	}

	// Public clients are exempt from secret verification entirely; the
	// supplied secret is ignored, not merely unchecked for format.
	if !client.IsPublic() {
		if !gs.hasher.VerifyHash(client.SecretHash, clientSecret) {
			return nil, errors.Wrap(ErrInvalidClient, "client secret mismatch")
		}
	}
	return client, nil
}

// resolveUser verifies user credentials. Every failure is ErrInvalidGrant,
// and unknown users still pay a key-derivation cost so latency does not
// reveal whether the login exists.
func (gs *GrantService) resolveUser(tenantID, login, password string) (*users.User, error) {
	user, err := gs.repos.Users.GetByLogin(tenantID, login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			gs.hasher.DummyVerify(password)
			return nil, errors.Wrap(ErrInvalidGrant, "unknown user")
		}
		return nil, errors.Wrap(err, "[GrantService.resolveUser] Users.GetByLogin")
	}
	if user.PasswordHash == "" {
		// A user without a password fails closed.
		gs.hasher.DummyVerify(password)
		return nil, errors.Wrap(ErrInvalidGrant, "user has no password set")
	}
	if !gs.hasher.VerifyHash(user.PasswordHash, password) {
		return nil, errors.Wrap(ErrInvalidGrant, "password mismatch")
	}
	return user, nil
}

// mintTokens loads the user's current claims and signs a fresh access and
// refresh token pair. Neither token is persisted.
func (gs *GrantService) mintTokens(client *clients.Client, user *users.User) (*TokenResponse, error) {
	claims, err := gs.repos.Users.ClaimsForUser(client.TenantID, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[GrantService.mintTokens] Users.ClaimsForUser")
	}

	payload := make(map[string]any, len(claims)+4)
	for _, claim := range claims {
		payload[claim.Key] = claim.Value
	}
	payload["jti"] = uuid.NewString()
	payload[ClaimTenantID] = client.TenantID
	payload[ClaimLogin] = user.Login
	payload[ClaimUserID] = user.ID

	accessToken, err := gs.codec.Sign(payload, gs.accessTokenLifetime)
	if err != nil {
		return nil, errors.Wrap(err, "[GrantService.mintTokens] sign access token")
	}

	refreshLifetime := gs.refreshTokenLifetime
	if client.RefreshTokenLifetime > 0 {
		refreshLifetime = time.Duration(client.RefreshTokenLifetime) * time.Second
	}
	refreshToken, err := gs.codec.Sign(map[string]any{
		"jti":                uuid.NewString(),
		refreshClaimTenantID: client.TenantID,
		refreshClaimClientID: client.ID,
		refreshClaimUserID:   user.ID,
	}, refreshLifetime)
	if err != nil {
		return nil, errors.Wrap(err, "[GrantService.mintTokens] sign refresh token")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(gs.accessTokenLifetime.Seconds()),
	}, nil
}

// Authenticate verifies a bearer token and reconstructs the principal. The
// user is re-resolved from the store on every call: deleted users lose
// access immediately even while their tokens remain structurally valid.
func (gs *GrantService) Authenticate(rawToken string) (*Principal, error) {
	payload, err := gs.codec.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	tenantID, _ := payload[ClaimTenantID].(string)
	userID, _ := payload[ClaimUserID].(string)
	if tenantID == "" || userID == "" {
		return nil, errors.Wrap(token.ErrInvalidToken, "token carries no identity")
	}

	user, err := gs.repos.Users.GetByID(tenantID, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, errors.Wrap(token.ErrInvalidToken, "user no longer exists")
		}
		return nil, errors.Wrap(err, "[GrantService.Authenticate] Users.GetByID")
	}

	extra := make(map[string]string)
	for k, v := range payload {
		if strings.HasPrefix(k, users.ReservedClaimPrefix) || k == "iat" || k == "exp" || k == "jti" {
			continue
		}
		if s, ok := v.(string); ok {
			extra[k] = s
		}
	}

	return &Principal{
		TenantID: tenantID,
		UserID:   user.ID,
		Login:    user.Login,
		Claims:   extra,
	}, nil
}
