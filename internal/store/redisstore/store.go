// Package redisstore persists tenants, clients, users, and claims as JSON
// documents in redis. It implements the same repo contracts as the
// in-memory stores; the address in the configuration selects which one the
// process runs on.
package redisstore

import (
	"context"

	rdb "github.com/redis/go-redis/v9"

	"github.com/nident/identity-server/clients"
	"github.com/nident/identity-server/tenants"
	"github.com/nident/identity-server/users"
)

const (
	tenantKeyPrefix = "tenant:"
	tenantSetKey    = "tenants"

	clientKeyPrefix = "client:"
	clientSetKey    = "clients"

	userKeyPrefix      = "user:"
	userSetKey         = "users"
	userLoginKeyPrefix = "user:login:"
	userEmailKeyPrefix = "user:email:"
	claimsKeyPrefix    = "claims:"
)

type Store struct {
	c *rdb.Client
}

func New(addr string, db int) *Store {
	return &Store{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping() error {
	return s.c.Ping(context.Background()).Err()
}

func (s *Store) Tenants() tenants.Repo { return &tenantRepo{c: s.c} }
func (s *Store) Clients() clients.Repo { return &clientRepo{c: s.c} }
func (s *Store) Users() users.Repo     { return &userRepo{c: s.c} }
