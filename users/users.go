package users

import (
	"fmt"
	"strings"
)

type User struct {
	ID       string `json:"id"`
	TenantID string `json:"-"`
	Login    string `json:"login"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	// PasswordHash may be empty for a user whose password was never set;
	// credential verification fails closed in that case.
	PasswordHash string `json:"-"`
}

// Claim is a named fact about a user, embedded verbatim into issued access
// tokens.
type Claim struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ReservedClaimPrefix marks claim keys the token issuer owns. Claims with
// this prefix carry the authenticated identity (tenant, login, user ID) and
// must never be writable as user claims.
const ReservedClaimPrefix = "ni:"

// ErrReservedClaimKey is returned when a claim write uses a key starting
// with ReservedClaimPrefix.
var ErrReservedClaimKey = fmt.Errorf("claim keys starting with %q are reserved", ReservedClaimPrefix)

// Validate rejects claims whose key would collide with the reserved
// identity claims at token mint time.
func (c Claim) Validate() error {
	if strings.HasPrefix(c.Key, ReservedClaimPrefix) {
		return ErrReservedClaimKey
	}
	if c.Key == "" {
		return fmt.Errorf("claim key must not be empty")
	}
	return nil
}

// DuplicateLoginError reports a tenant-scoped login uniqueness violation.
type DuplicateLoginError struct {
	Login string
}

func (e *DuplicateLoginError) Error() string {
	return fmt.Sprintf("a user with login %q already exists", e.Login)
}

// DuplicateEmailError reports a tenant-scoped email uniqueness violation.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("a user with email %q already exists", e.Email)
}
