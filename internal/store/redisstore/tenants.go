package redisstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	rdb "github.com/redis/go-redis/v9"

	"github.com/nident/identity-server/tenants"
)

var _ tenants.Repo = (*tenantRepo)(nil)

type tenantRepo struct {
	c *rdb.Client
}

func (tr *tenantRepo) Save(tenant *tenants.Tenant) (bool, error) {
	ctx := context.Background()
	doc, err := json.Marshal(tenant)
	if err != nil {
		return false, errors.Wrap(err, "[tenantRepo.Save] marshal")
	}

	existed, err := tr.c.Exists(ctx, tenantKeyPrefix+tenant.ID).Result()
	if err != nil {
		return false, errors.Wrap(err, "[tenantRepo.Save] exists")
	}

	pipe := tr.c.TxPipeline()
	pipe.Set(ctx, tenantKeyPrefix+tenant.ID, doc, 0)
	pipe.SAdd(ctx, tenantSetKey, tenant.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "[tenantRepo.Save] exec")
	}
	return existed == 0, nil
}

func (tr *tenantRepo) Get(id string) (*tenants.Tenant, error) {
	doc, err := tr.c.Get(context.Background(), tenantKeyPrefix+id).Bytes()
	if err == rdb.Nil {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[tenantRepo.Get] get")
	}
	var tenant tenants.Tenant
	if err := json.Unmarshal(doc, &tenant); err != nil {
		return nil, errors.Wrap(err, "[tenantRepo.Get] unmarshal")
	}
	return &tenant, nil
}

func (tr *tenantRepo) List() ([]*tenants.Tenant, error) {
	ctx := context.Background()
	ids, err := tr.c.SMembers(ctx, tenantSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[tenantRepo.List] smembers")
	}

	list := make([]*tenants.Tenant, 0, len(ids))
	for _, id := range ids {
		tenant, err := tr.Get(id)
		if errors.Is(err, tenants.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, tenant)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (tr *tenantRepo) Delete(id string) error {
	ctx := context.Background()
	pipe := tr.c.TxPipeline()
	pipe.Del(ctx, tenantKeyPrefix+id)
	pipe.SRem(ctx, tenantSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[tenantRepo.Delete] exec")
	}
	return nil
}
