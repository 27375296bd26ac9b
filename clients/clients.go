package clients

// ApplicationType distinguishes clients that can keep a secret from those
// that cannot.
type ApplicationType string

const (
	// ApplicationTypeConfidential clients (server-side apps) must present a
	// secret that verifies against SecretHash.
	ApplicationTypeConfidential ApplicationType = "Confidential"
	// ApplicationTypePublic clients (SPAs, mobile apps) are exempt from
	// secret verification and are restricted by allowed origin instead.
	ApplicationTypePublic ApplicationType = "Public"
)

type Client struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	Name            string          `json:"name"`
	ApplicationType ApplicationType `json:"applicationType"`
	SecretHash      string          `json:"-"`
	AllowedOrigin   string          `json:"allowedOrigin"`
	Active          bool            `json:"active"`
	// RefreshTokenLifetime, in seconds, overrides the configured default
	// refresh token lifetime when greater than zero.
	RefreshTokenLifetime int      `json:"refreshTokenLifetime"`
	Grants               []string `json:"grants"`
}

// IsPublic returns true if the client cannot keep a secret confidential.
func (c *Client) IsPublic() bool {
	return c.ApplicationType == ApplicationTypePublic
}

// AllowsGrant reports whether the client is permitted to use the grant type.
// A client with no grant list allows every grant.
func (c *Client) AllowsGrant(grantType string) bool {
	if len(c.Grants) == 0 {
		return true
	}
	for _, g := range c.Grants {
		if g == grantType {
			return true
		}
	}
	return false
}
