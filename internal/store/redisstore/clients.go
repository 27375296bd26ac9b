package redisstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	rdb "github.com/redis/go-redis/v9"

	"github.com/nident/identity-server/clients"
)

var _ clients.Repo = (*clientRepo)(nil)

type clientRepo struct {
	c *rdb.Client
}

// clientDoc is the stored rendition. The domain struct hides the secret
// hash from JSON serialization, so persistence maps it explicitly.
type clientDoc struct {
	ID                   string   `json:"id"`
	TenantID             string   `json:"tenantId"`
	Name                 string   `json:"name"`
	ApplicationType      string   `json:"applicationType"`
	SecretHash           string   `json:"secretHash"`
	AllowedOrigin        string   `json:"allowedOrigin"`
	Active               bool     `json:"active"`
	RefreshTokenLifetime int      `json:"refreshTokenLifetime"`
	Grants               []string `json:"grants"`
}

func toClientDoc(c *clients.Client) clientDoc {
	return clientDoc{
		ID:                   c.ID,
		TenantID:             c.TenantID,
		Name:                 c.Name,
		ApplicationType:      string(c.ApplicationType),
		SecretHash:           c.SecretHash,
		AllowedOrigin:        c.AllowedOrigin,
		Active:               c.Active,
		RefreshTokenLifetime: c.RefreshTokenLifetime,
		Grants:               c.Grants,
	}
}

func (d clientDoc) toClient() *clients.Client {
	return &clients.Client{
		ID:                   d.ID,
		TenantID:             d.TenantID,
		Name:                 d.Name,
		ApplicationType:      clients.ApplicationType(d.ApplicationType),
		SecretHash:           d.SecretHash,
		AllowedOrigin:        d.AllowedOrigin,
		Active:               d.Active,
		RefreshTokenLifetime: d.RefreshTokenLifetime,
		Grants:               d.Grants,
	}
}

func (cr *clientRepo) Save(client *clients.Client) (bool, error) {
	ctx := context.Background()
	doc, err := json.Marshal(toClientDoc(client))
	if err != nil {
		return false, errors.Wrap(err, "[clientRepo.Save] marshal")
	}

	existed, err := cr.c.Exists(ctx, clientKeyPrefix+client.ID).Result()
	if err != nil {
		return false, errors.Wrap(err, "[clientRepo.Save] exists")
	}

	pipe := cr.c.TxPipeline()
	pipe.Set(ctx, clientKeyPrefix+client.ID, doc, 0)
	pipe.SAdd(ctx, clientSetKey, client.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "[clientRepo.Save] exec")
	}
	return existed == 0, nil
}

func (cr *clientRepo) Get(id string) (*clients.Client, error) {
	raw, err := cr.c.Get(context.Background(), clientKeyPrefix+id).Bytes()
	if err == rdb.Nil {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[clientRepo.Get] get")
	}
	var doc clientDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "[clientRepo.Get] unmarshal")
	}
	return doc.toClient(), nil
}

func (cr *clientRepo) List(tenantID string) ([]*clients.Client, error) {
	ctx := context.Background()
	ids, err := cr.c.SMembers(ctx, clientSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[clientRepo.List] smembers")
	}

	list := make([]*clients.Client, 0, len(ids))
	for _, id := range ids {
		client, err := cr.Get(id)
		if errors.Is(err, clients.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if tenantID != "" && client.TenantID != tenantID {
			continue
		}
		list = append(list, client)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (cr *clientRepo) Delete(tenantID, id string) error {
	client, err := cr.Get(id)
	if errors.Is(err, clients.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if client.TenantID != tenantID {
		return nil
	}

	ctx := context.Background()
	pipe := cr.c.TxPipeline()
	pipe.Del(ctx, clientKeyPrefix+id)
	pipe.SRem(ctx, clientSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[clientRepo.Delete] exec")
	}
	return nil
}
