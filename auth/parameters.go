package auth

// Supported grant types at the token endpoint.
const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
)

// TokenParameters carries one parsed token request. Which fields are
// meaningful depends on GrantType.
type TokenParameters struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
}

// TokenResponse is the standard OAuth2 token endpoint response (RFC 6749).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Principal is the authenticated identity reconstructed from a verified
// bearer token plus a fresh store lookup.
type Principal struct {
	TenantID string
	UserID   string
	Login    string
	// Claims holds the non-reserved claims carried by the token.
	Claims map[string]string
}
