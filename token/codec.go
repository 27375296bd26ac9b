// Package token signs and verifies the compact self-contained tokens the
// grant engine mints. Tokens are RS256 JWTs: the private key signs, the
// public key verifies, so verification can be distributed without exposing
// signing capability.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrInvalidToken covers signature mismatches and structural
	// corruption.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens that verify correctly but
	// whose exp has elapsed. Callers that must distinguish "expired" from
	// "garbage" rely on this being a separate kind.
	ErrTokenExpired = errors.New("token expired")
)

// Codec signs claim payloads into JWTs and verifies them back.
type Codec struct {
	keyPair *KeyPair
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc sets the time source (primarily for testing).
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(keyPair *KeyPair, options ...CodecOption) (*Codec, error) {
	if keyPair == nil || keyPair.PublicKey == nil {
		return nil, errors.New("[NewCodec] key pair with a public key is required")
	}
	c := &Codec{
		keyPair: keyPair,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Sign mints a token over the payload with iat set to now and exp set to
// now plus lifetime. The payload is copied; reserved iat/exp/jti handling
// stays inside the codec.
func (c *Codec) Sign(payload map[string]any, lifetime time.Duration) (string, error) {
	if c.keyPair.PrivateKey == nil {
		return "", pkgerrors.New("[Codec.Sign] verify-only codec has no private key")
	}

	now := c.nowFunc()
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(lifetime).Unix()

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = c.keyPair.KeyID

	signed, err := t.SignedString(c.keyPair.PrivateKey)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Codec.Sign] SignedString")
	}
	return signed, nil
}

// Verify checks the token's signature and expiration and returns the claim
// payload. It returns ErrTokenExpired for well-signed but stale tokens and
// ErrInvalidToken for everything else.
func (c *Codec) Verify(rawToken string) (map[string]any, error) {
	parsed, err := jwt.Parse(rawToken, c.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.Wrap(ErrTokenExpired, err.Error())
		}
		return nil, pkgerrors.Wrap(ErrInvalidToken, err.Error())
	}
	return payloadOf(parsed)
}

// VerifyIgnoringExpiry checks only the signature and structure, returning
// the payload even when exp has elapsed. The refresh flow uses this to read
// an expired refresh token's claims and produce a clean "expired" error
// instead of a generic invalid-token one.
func (c *Codec) VerifyIgnoringExpiry(rawToken string) (map[string]any, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.Parse(rawToken, c.verificationKey)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrInvalidToken, err.Error())
	}
	return payloadOf(parsed)
}

func (c *Codec) verificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, pkgerrors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.keyPair.PublicKey, nil
}

func payloadOf(parsed *jwt.Token) (map[string]any, error) {
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, pkgerrors.Wrap(ErrInvalidToken, "unexpected claims type")
	}
	return map[string]any(claims), nil
}

// Expiry reads the exp claim out of a decoded payload.
func Expiry(payload map[string]any) (time.Time, bool) {
	exp, ok := payload["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}
