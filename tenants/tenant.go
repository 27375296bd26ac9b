package tenants

// Tenant is the root of isolation. Every client, user, and claim belongs to
// exactly one tenant; the tenant ID partitions all lookups.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
