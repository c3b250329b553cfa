package goGuard

import (
	"context"
	"strings"
	"time"
)

// Role is an authorization group an account belongs to.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleSistemas     Role = "SISTEMAS"
	RoleJefe         Role = "JEFE"
	RoleContabilidad Role = "CONTABILIDAD"
	RoleOficial      Role = "OFICIAL"
	RoleInversiones  Role = "INVERSIONES"
)

// DefaultRoles is the closed role set used when Config.Roles is empty.
func DefaultRoles() []Role {
	return []Role{RoleAdmin, RoleSistemas, RoleJefe, RoleContabilidad, RoleOficial, RoleInversiones}
}

// ArchivedPassword is a previous password hash kept for reuse detection.
type ArchivedPassword struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is the persisted user record.
//
// Locked implies FailedAttempts is at or above the lockout threshold.
// Version increases on every persisted mutation.
type Account struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	MiddleName     string `json:"middle_name,omitempty"`
	LastName       string `json:"last_name"`
	SecondLastName string `json:"second_last_name,omitempty"`

	Branch   string `json:"branch"`
	City     string `json:"city"`
	JobTitle string `json:"job_title"`
	Mobile   string `json:"mobile"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`

	PasswordHash      string    `json:"password_hash"`
	FailedAttempts    int       `json:"failed_attempts"`
	Locked            bool      `json:"locked"`
	PasswordExpiresAt time.Time `json:"password_expires_at"`

	Roles           []Role             `json:"roles"`
	PasswordHistory []ArchivedPassword `json:"password_history,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the non-empty name parts with single spaces.
func (a Account) FullName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName, a.SecondLastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// HasRole reports whether the account carries role.
func (a Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; stores hand out clones so callers never share
// slices with persisted state.
func (a Account) Clone() Account {
	out := a
	if a.Roles != nil {
		out.Roles = append([]Role(nil), a.Roles...)
	}
	if a.PasswordHistory != nil {
		out.PasswordHistory = append([]ArchivedPassword(nil), a.PasswordHistory...)
	}
	return out
}

// AccountStore is the credential store port. Implementations live under
// store/.
//
// UpdateAccount must serialize read-modify-write per username: mutate sees
// the freshest snapshot, nothing is persisted when it returns an error, and
// otherwise the result is written atomically with Version incremented.
type AccountStore interface {
	GetAccount(ctx context.Context, username string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, username string, mutate func(*Account) error) (Account, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CreateAccountInput carries the fields required to register an account.
type CreateAccountInput struct {
	Username       string
	Password       string
	Email          string
	FirstName      string
	MiddleName     string
	LastName       string
	SecondLastName string
	Branch         string
	City           string
	JobTitle       string
	Mobile         string
	Phone          string
	Address        string
	Roles          []Role
}

// UpdateAccountInput replaces the mutable profile fields and the full role set.
type UpdateAccountInput struct {
	Branch   string
	City     string
	JobTitle string
	Mobile   string
	Phone    string
	Address  string
	Roles    []Role
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	Token     string
	Username  string
	Roles     []Role
	ExpiresAt time.Time
}

// Identity is the authenticated principal derived from a verified token.
type Identity struct {
	Username    string
	Roles       []Role
	Authorities []string
	Claims      map[string]any
}

// HasRole matches role against the identity's prefixed authorities. role may
// be given with or without the prefix.
func (i *Identity) HasRole(role Role) bool {
	if i == nil {
		return false
	}
	want := string(role)
	for idx, authority := range i.Authorities {
		if authority == want {
			return true
		}
		if idx < len(i.Roles) && string(i.Roles[idx]) == want {
			return true
		}
	}
	return false
}
