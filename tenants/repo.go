package tenants

import "errors"

// ErrNotFound is returned by lookups when no tenant matches.
var ErrNotFound = errors.New("tenant not found")

type Repo interface {
	// Save upserts the tenant by ID and reports whether it was created.
	Save(tenant *Tenant) (created bool, err error)
	Get(id string) (*Tenant, error)
	List() ([]*Tenant, error)
	Delete(id string) error
}
