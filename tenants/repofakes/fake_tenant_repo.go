package repofakes

import (
	"sort"
	"sync"

	"github.com/nident/identity-server/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

// FakeTenantRepo is an in-memory tenant store used in tests and as the
// default store when no external persistence is configured.
type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{tenants: make(map[string]*tenants.Tenant)}
}

func (tr *FakeTenantRepo) Save(tenant *tenants.Tenant) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	_, exists := tr.tenants[tenant.ID]
	copied := *tenant
	tr.tenants[tenant.ID] = &copied
	return !exists, nil
}

func (tr *FakeTenantRepo) Get(id string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tenant, ok := tr.tenants[id]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	copied := *tenant
	return &copied, nil
}

func (tr *FakeTenantRepo) List() ([]*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		copied := *t
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (tr *FakeTenantRepo) Delete(id string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	delete(tr.tenants, id)
	return nil
}
