package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	rdb "github.com/redis/go-redis/v9"

	"github.com/nident/identity-server/users"
)

var _ users.Repo = (*userRepo)(nil)

type userRepo struct {
	c *rdb.Client
}

type userDoc struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenantId"`
	Login        string `json:"login"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

func toUserDoc(u *users.User) userDoc {
	return userDoc{
		ID:           u.ID,
		TenantID:     u.TenantID,
		Login:        u.Login,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}
}

func (d userDoc) toUser() *users.User {
	return &users.User{
		ID:           d.ID,
		TenantID:     d.TenantID,
		Login:        d.Login,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
	}
}

func userKey(tenantID, id string) string       { return userKeyPrefix + tenantID + ":" + id }
func loginKey(tenantID, login string) string   { return userLoginKeyPrefix + tenantID + ":" + login }
func emailKey(tenantID, email string) string   { return userEmailKeyPrefix + tenantID + ":" + email }
func claimsKey(tenantID, userID string) string { return claimsKeyPrefix + tenantID + ":" + userID }

// Save upserts the user document while holding the tenant-scoped login and
// email uniqueness invariants. The check-and-write runs under WATCH so a
// concurrent save of a conflicting user retries rather than clobbering.
func (ur *userRepo) Save(user *users.User) (bool, error) {
	ctx := context.Background()
	var created bool
	var conflict error

	key := userKey(user.TenantID, user.ID)
	lKey := loginKey(user.TenantID, user.Login)
	eKey := emailKey(user.TenantID, user.Email)

	txn := func(tx *rdb.Tx) error {
		conflict = nil

		if owner, err := tx.Get(ctx, lKey).Result(); err == nil && owner != user.ID {
			conflict = &users.DuplicateLoginError{Login: user.Login}
			return nil
		} else if err != nil && err != rdb.Nil {
			return err
		}
		if owner, err := tx.Get(ctx, eKey).Result(); err == nil && owner != user.ID {
			conflict = &users.DuplicateEmailError{Email: user.Email}
			return nil
		} else if err != nil && err != rdb.Nil {
			return err
		}

		doc := toUserDoc(user)
		var previous *userDoc
		if raw, err := tx.Get(ctx, key).Bytes(); err == nil {
			var p userDoc
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			previous = &p
			// A plain save never clears an already-set password.
			doc.PasswordHash = p.PasswordHash
		} else if err != rdb.Nil {
			return err
		}
		created = previous == nil

		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			if previous != nil && previous.Login != user.Login {
				pipe.Del(ctx, loginKey(user.TenantID, previous.Login))
			}
			if previous != nil && previous.Email != user.Email {
				pipe.Del(ctx, emailKey(user.TenantID, previous.Email))
			}
			pipe.Set(ctx, key, raw, 0)
			pipe.Set(ctx, lKey, user.ID, 0)
			pipe.Set(ctx, eKey, user.ID, 0)
			pipe.SAdd(ctx, userSetKey, user.TenantID+":"+user.ID)
			return nil
		})
		return err
	}

	for i := 0; i < 5; i++ {
		err := ur.c.Watch(ctx, txn, key, lKey, eKey)
		if err == rdb.TxFailedErr {
			continue
		}
		if err != nil {
			return false, errors.Wrap(err, "[userRepo.Save] watch")
		}
		return created, conflict
	}
	return false, errors.New("[userRepo.Save] transaction contention")
}

func (ur *userRepo) GetByID(tenantID, id string) (*users.User, error) {
	raw, err := ur.c.Get(context.Background(), userKey(tenantID, id)).Bytes()
	if err == rdb.Nil {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[userRepo.GetByID] get")
	}
	var doc userDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "[userRepo.GetByID] unmarshal")
	}
	return doc.toUser(), nil
}

func (ur *userRepo) GetByLogin(tenantID, login string) (*users.User, error) {
	id, err := ur.c.Get(context.Background(), loginKey(tenantID, login)).Result()
	if err == rdb.Nil {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[userRepo.GetByLogin] index get")
	}
	return ur.GetByID(tenantID, id)
}

func (ur *userRepo) List(tenantID string) ([]*users.User, error) {
	ctx := context.Background()
	members, err := ur.c.SMembers(ctx, userSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[userRepo.List] smembers")
	}

	list := make([]*users.User, 0, len(members))
	for _, member := range members {
		parts := strings.SplitN(member, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if tenantID != "" && parts[0] != tenantID {
			continue
		}
		user, err := ur.GetByID(parts[0], parts[1])
		if errors.Is(err, users.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (ur *userRepo) Delete(tenantID, id string) error {
	user, err := ur.GetByID(tenantID, id)
	if errors.Is(err, users.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipe := ur.c.TxPipeline()
	pipe.Del(ctx, userKey(tenantID, id))
	pipe.Del(ctx, loginKey(tenantID, user.Login))
	pipe.Del(ctx, emailKey(tenantID, user.Email))
	pipe.Del(ctx, claimsKey(tenantID, id))
	pipe.SRem(ctx, userSetKey, tenantID+":"+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[userRepo.Delete] exec")
	}
	return nil
}

func (ur *userRepo) SetPasswordHash(tenantID, id, passwordHash string) error {
	ctx := context.Background()
	key := userKey(tenantID, id)

	txn := func(tx *rdb.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == rdb.Nil {
			return users.ErrNotFound
		}
		if err != nil {
			return err
		}
		var doc userDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		doc.PasswordHash = passwordHash
		updated, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < 5; i++ {
		err := ur.c.Watch(ctx, txn, key)
		if err == rdb.TxFailedErr {
			continue
		}
		if errors.Is(err, users.ErrNotFound) {
			return users.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "[userRepo.SetPasswordHash] watch")
		}
		return nil
	}
	return errors.New("[userRepo.SetPasswordHash] transaction contention")
}

func (ur *userRepo) ClaimsForUser(tenantID, userID string) ([]users.Claim, error) {
	fields, err := ur.c.HGetAll(context.Background(), claimsKey(tenantID, userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[userRepo.ClaimsForUser] hgetall")
	}

	claims := make([]users.Claim, 0, len(fields))
	for k, v := range fields {
		claims = append(claims, users.Claim{Key: k, Value: v})
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].Key < claims[j].Key })
	return claims, nil
}

func (ur *userRepo) SetUserClaim(tenantID, userID string, claim users.Claim) (bool, error) {
	ctx := context.Background()

	exists, err := ur.c.Exists(ctx, userKey(tenantID, userID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "[userRepo.SetUserClaim] exists")
	}
	if exists == 0 {
		return false, users.ErrNotFound
	}

	// HSet reports how many fields were newly created, which is exactly
	// the insert-vs-update signal the API layer needs.
	added, err := ur.c.HSet(ctx, claimsKey(tenantID, userID), claim.Key, claim.Value).Result()
	if err != nil {
		return false, errors.Wrap(err, "[userRepo.SetUserClaim] hset")
	}
	return added == 1, nil
}

func (ur *userRepo) RemoveUserClaim(tenantID, userID, claimKey string) error {
	if err := ur.c.HDel(context.Background(), claimsKey(tenantID, userID), claimKey).Err(); err != nil {
		return errors.Wrap(err, "[userRepo.RemoveUserClaim] hdel")
	}
	return nil
}
