package clients

import "errors"

// ErrNotFound is returned by lookups when no client matches.
var ErrNotFound = errors.New("client not found")

type Repo interface {
	// Save upserts the client by ID and reports whether it was created.
	Save(client *Client) (created bool, err error)
	// Get resolves a client by ID alone; the grant engine derives the
	// tenant from the resolved client.
	Get(id string) (*Client, error)
	List(tenantID string) ([]*Client, error)
	Delete(tenantID, id string) error
}
