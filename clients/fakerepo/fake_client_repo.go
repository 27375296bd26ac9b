package fakerepo

import (
	"sort"
	"sync"

	"github.com/nident/identity-server/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

// FakeClientRepo is an in-memory client store used in tests and as the
// default store when no external persistence is configured.
type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{clients: make(map[string]*clients.Client)}
}

func (cr *FakeClientRepo) Save(client *clients.Client) (bool, error) {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	_, exists := cr.clients[client.ID]
	copied := *client
	cr.clients[client.ID] = &copied
	return !exists, nil
}

func (cr *FakeClientRepo) Get(id string) (*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	client, ok := cr.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (cr *FakeClientRepo) List(tenantID string) ([]*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	list := make([]*clients.Client, 0)
	for _, c := range cr.clients {
		if tenantID != "" && c.TenantID != tenantID {
			continue
		}
		copied := *c
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (cr *FakeClientRepo) Delete(tenantID, id string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	client, ok := cr.clients[id]
	if !ok || client.TenantID != tenantID {
		return nil
	}
	delete(cr.clients, id)
	return nil
}
