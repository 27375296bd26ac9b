package users

import "errors"

// ErrNotFound is returned by lookups when no user matches.
var ErrNotFound = errors.New("user not found")

// Repo persists users and their claims. All operations are tenant-scoped;
// login and email are unique per tenant, not globally. Save and
// SetUserClaim are atomic per record and report insert-vs-update so the
// HTTP layer can answer 201 or 200.
type Repo interface {
	// Save upserts the user by ID. A conflicting login or email within the
	// tenant returns *DuplicateLoginError or *DuplicateEmailError.
	Save(user *User) (created bool, err error)
	GetByID(tenantID, id string) (*User, error)
	GetByLogin(tenantID, login string) (*User, error)
	List(tenantID string) ([]*User, error)
	Delete(tenantID, id string) error
	SetPasswordHash(tenantID, id, passwordHash string) error

	ClaimsForUser(tenantID, userID string) ([]Claim, error)
	// SetUserClaim upserts by claim key and reports whether the claim was
	// created rather than overwritten.
	SetUserClaim(tenantID, userID string, claim Claim) (created bool, err error)
	RemoveUserClaim(tenantID, userID, claimKey string) error
}
