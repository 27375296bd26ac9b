package fakeuserrepo

import (
	"sort"
	"sync"

	"github.com/nident/identity-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type tenantKey struct {
	tenantID string
	id       string
}

// FakeUserRepo is an in-memory user and claim store used in tests and as
// the default store when no external persistence is configured.
type FakeUserRepo struct {
	users  map[tenantKey]*users.User
	claims map[tenantKey][]users.Claim
	lock   sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:  make(map[tenantKey]*users.User),
		claims: make(map[tenantKey][]users.Claim),
	}
}

func (ur *FakeUserRepo) Save(user *users.User) (bool, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := tenantKey{user.TenantID, user.ID}
	for k, existing := range ur.users {
		if k.tenantID != user.TenantID || k.id == user.ID {
			continue
		}
		if existing.Login == user.Login {
			return false, &users.DuplicateLoginError{Login: user.Login}
		}
		if existing.Email == user.Email {
			return false, &users.DuplicateEmailError{Email: user.Email}
		}
	}

	previous, exists := ur.users[key]
	copied := *user
	if exists {
		// A plain save never clears an already-set password.
		copied.PasswordHash = previous.PasswordHash
	}
	ur.users[key] = &copied
	return !exists, nil
}

func (ur *FakeUserRepo) GetByID(tenantID, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[tenantKey{tenantID, id}]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByLogin(tenantID, login string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for k, u := range ur.users {
		if k.tenantID == tenantID && u.Login == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (ur *FakeUserRepo) List(tenantID string) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]*users.User, 0)
	for k, u := range ur.users {
		if tenantID != "" && k.tenantID != tenantID {
			continue
		}
		copied := *u
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (ur *FakeUserRepo) Delete(tenantID, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := tenantKey{tenantID, id}
	delete(ur.users, key)
	delete(ur.claims, key)
	return nil
}

func (ur *FakeUserRepo) SetPasswordHash(tenantID, id, passwordHash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[tenantKey{tenantID, id}]
	if !ok {
		return users.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (ur *FakeUserRepo) ClaimsForUser(tenantID, userID string) ([]users.Claim, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	claims := ur.claims[tenantKey{tenantID, userID}]
	copied := make([]users.Claim, len(claims))
	copy(copied, claims)
	return copied, nil
}

func (ur *FakeUserRepo) SetUserClaim(tenantID, userID string, claim users.Claim) (bool, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := tenantKey{tenantID, userID}
	if _, ok := ur.users[key]; !ok {
		return false, users.ErrNotFound
	}

	claims := ur.claims[key]
	for i := range claims {
		if claims[i].Key == claim.Key {
			claims[i].Value = claim.Value
			return false, nil
		}
	}
	ur.claims[key] = append(claims, claim)
	return true, nil
}

func (ur *FakeUserRepo) RemoveUserClaim(tenantID, userID, claimKey string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := tenantKey{tenantID, userID}
	claims := ur.claims[key]
	for i := range claims {
		if claims[i].Key == claimKey {
			ur.claims[key] = append(claims[:i], claims[i+1:]...)
			return nil
		}
	}
	return nil
}
