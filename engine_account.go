package goGuard

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

const (
	maxUsernameLen = 30
	maxEmailLen    = 80
	maxNameLen     = 25
	maxBranchLen   = 20
	maxCityLen     = 20
	maxJobTitleLen = 45
	maxPhoneLen    = 10
	maxAddressLen  = 45
)

// CreateAccount registers a new unlocked account whose password expires
// after the configured Expiry.
func (e *Engine) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	in = normalizeCreateInput(in)
	if err := e.validateCreateInput(in); err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, in.Username, err, nil)
		return Account{}, err
	}
	if err := e.policy.ValidateComplexity(in.Password); err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, in.Username, err, nil)
		return Account{}, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		e.logFault(ctx, "create_account.hash", in.Username, err)
		return Account{}, err
	}

	now := e.now().UTC()
	account := Account{
		ID:                ulid.Make().String(),
		Username:          in.Username,
		Email:             in.Email,
		FirstName:         in.FirstName,
		MiddleName:        in.MiddleName,
		LastName:          in.LastName,
		SecondLastName:    in.SecondLastName,
		Branch:            in.Branch,
		City:              in.City,
		JobTitle:          in.JobTitle,
		Mobile:            in.Mobile,
		Phone:             in.Phone,
		Address:           in.Address,
		PasswordHash:      hash,
		PasswordExpiresAt: e.policy.NextExpiry(now),
		Roles:             in.Roles,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := e.store.CreateAccount(ctx, account)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountExists), errors.Is(err, ErrEmailExists):
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationFailure, false, in.Username, err, nil)
			return Account{}, err
		default:
			e.logFault(ctx, "create_account", in.Username, err)
			return Account{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, created.Username, nil, func() map[string]string {
		return map[string]string{"roles": joinRoles(created.Roles)}
	})
	return created, nil
}

// GetAccount returns the stored account or ErrAccountNotFound.
func (e *Engine) GetAccount(ctx context.Context, username string) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, ErrInvalidRequest
	}

	account, err := e.store.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		e.logFault(ctx, "get_account", username, err)
		return Account{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by username.
func (e *Engine) ListAccounts(ctx context.Context) ([]Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		e.logFault(ctx, "list_accounts", "", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

// UpdateAccount replaces the profile fields and the full role set of
// username. Identity, credential and lockout fields are not touched.
func (e *Engine) UpdateAccount(ctx context.Context, username string, in UpdateAccountInput) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, ErrInvalidRequest
	}

	in = normalizeUpdateInput(in)
	if err := e.validateUpdateInput(in); err != nil {
		return Account{}, err
	}

	now := e.now().UTC()
	updated, err := e.store.UpdateAccount(ctx, username, func(a *Account) error {
		a.Branch = in.Branch
		a.City = in.City
		a.JobTitle = in.JobTitle
		a.Mobile = in.Mobile
		a.Phone = in.Phone
		a.Address = in.Address
		a.Roles = append([]Role(nil), in.Roles...)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		e.logFault(ctx, "update_account", username, err)
		return Account{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountUpdated)
	e.emitAudit(ctx, auditEventAccountUpdated, true, username, nil, func() map[string]string {
		return map[string]string{"roles": joinRoles(updated.Roles)}
	})
	return updated, nil
}

func normalizeCreateInput(in CreateAccountInput) CreateAccountInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.SecondLastName = strings.TrimSpace(in.SecondLastName)
	in.Branch = strings.TrimSpace(in.Branch)
	in.City = strings.TrimSpace(in.City)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Roles = dedupeRoles(in.Roles)
	return in
}

func normalizeUpdateInput(in UpdateAccountInput) UpdateAccountInput {
	in.Branch = strings.TrimSpace(in.Branch)
	in.City = strings.TrimSpace(in.City)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Roles = dedupeRoles(in.Roles)
	return in
}

type fieldCheck struct {
	name     string
	value    string
	max      int
	required bool
}

func (e *Engine) validateCreateInput(in CreateAccountInput) error {
	var problems []string
	if strings.IndexFunc(in.Username, unicode.IsSpace) >= 0 {
		problems = append(problems, "username must not contain whitespace")
	}
	if in.Password == "" {
		problems = append(problems, "password is required")
	}
	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			problems = append(problems, "email is not a valid address")
		}
	}
	problems = append(problems, checkFields(
		fieldCheck{"username", in.Username, maxUsernameLen, true},
		fieldCheck{"email", in.Email, maxEmailLen, true},
		fieldCheck{"firstName", in.FirstName, maxNameLen, true},
		fieldCheck{"middleName", in.MiddleName, maxNameLen, false},
		fieldCheck{"lastName", in.LastName, maxNameLen, true},
		fieldCheck{"secondLastName", in.SecondLastName, maxNameLen, false},
		fieldCheck{"branch", in.Branch, maxBranchLen, true},
		fieldCheck{"city", in.City, maxCityLen, true},
		fieldCheck{"jobTitle", in.JobTitle, maxJobTitleLen, true},
		fieldCheck{"mobile", in.Mobile, maxPhoneLen, true},
		fieldCheck{"phone", in.Phone, maxPhoneLen, true},
		fieldCheck{"address", in.Address, maxAddressLen, true},
	)...)
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return e.validateRoles(in.Roles)
}

func (e *Engine) validateUpdateInput(in UpdateAccountInput) error {
	problems := checkFields(
		fieldCheck{"branch", in.Branch, maxBranchLen, true},
		fieldCheck{"city", in.City, maxCityLen, true},
		fieldCheck{"jobTitle", in.JobTitle, maxJobTitleLen, true},
		fieldCheck{"mobile", in.Mobile, maxPhoneLen, true},
		fieldCheck{"phone", in.Phone, maxPhoneLen, true},
		fieldCheck{"address", in.Address, maxAddressLen, true},
	)
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return e.validateRoles(in.Roles)
}

func (e *Engine) validateRoles(roles []Role) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: at least one role is required", ErrInvalidRole)
	}
	for _, r := range roles {
		if !e.ValidRole(r) {
			return fmt.Errorf("%w: %q", ErrInvalidRole, r)
		}
	}
	return nil
}

func checkFields(checks ...fieldCheck) []string {
	var problems []string
	for _, c := range checks {
		n := utf8.RuneCountInString(c.value)
		switch {
		case c.required && n == 0:
			problems = append(problems, c.name+" is required")
		case n > c.max:
			problems = append(problems, fmt.Sprintf("%s must be at most %d characters", c.name, c.max))
		}
	}
	return problems
}

func dedupeRoles(roles []Role) []Role {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		r = Role(strings.ToUpper(strings.TrimSpace(string(r))))
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
