package httpapi

import goGuard "github.com/MrEthical07/goGuard"

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"minLength=1,maxLength=64"`
	Password string `json:"password" jsonschema:"minLength=1,maxLength=256"`
}

// ChangePasswordRequest is the body of POST /api/v1/me/update-password.
type ChangePasswordRequest struct {
	PasswordActual string `json:"passwordActual" jsonschema:"minLength=1,maxLength=256"`
	NewPassword    string `json:"newPassword" jsonschema:"minLength=1,maxLength=256"`
}

// CreateAccountRequest is the body of POST /api/v1/users.
type CreateAccountRequest struct {
	Username       string   `json:"username" jsonschema:"minLength=1,maxLength=30"`
	Password       string   `json:"password" jsonschema:"minLength=1,maxLength=72"`
	Email          string   `json:"email" jsonschema:"minLength=3,maxLength=80"`
	FirstName      string   `json:"firstName" jsonschema:"minLength=1,maxLength=25"`
	MiddleName     string   `json:"middleName,omitempty" jsonschema:"maxLength=25"`
	LastName       string   `json:"lastName" jsonschema:"minLength=1,maxLength=25"`
	SecondLastName string   `json:"secondLastName,omitempty" jsonschema:"maxLength=25"`
	Branch         string   `json:"branch" jsonschema:"minLength=1,maxLength=20"`
	City           string   `json:"city" jsonschema:"minLength=1,maxLength=20"`
	JobTitle       string   `json:"jobTitle" jsonschema:"minLength=1,maxLength=45"`
	Mobile         string   `json:"mobile" jsonschema:"minLength=1,maxLength=10"`
	Phone          string   `json:"phone" jsonschema:"minLength=1,maxLength=10"`
	Address        string   `json:"address" jsonschema:"minLength=1,maxLength=45"`
	Roles          []string `json:"roles" jsonschema:"minItems=1"`
}

// UpdateAccountRequest is the body of PUT /api/v1/users/:username.
type UpdateAccountRequest struct {
	Branch   string   `json:"branch" jsonschema:"minLength=1,maxLength=20"`
	City     string   `json:"city" jsonschema:"minLength=1,maxLength=20"`
	JobTitle string   `json:"jobTitle" jsonschema:"minLength=1,maxLength=45"`
	Mobile   string   `json:"mobile" jsonschema:"minLength=1,maxLength=10"`
	Phone    string   `json:"phone" jsonschema:"minLength=1,maxLength=10"`
	Address  string   `json:"address" jsonschema:"minLength=1,maxLength=45"`
	Roles    []string `json:"roles" jsonschema:"minItems=1"`
}

func toRoles(in []string) []goGuard.Role {
	out := make([]goGuard.Role, len(in))
	for i, r := range in {
		out[i] = goGuard.Role(r)
	}
	return out
}

func (r CreateAccountRequest) input() goGuard.CreateAccountInput {
	return goGuard.CreateAccountInput{
		Username:       r.Username,
		Password:       r.Password,
		Email:          r.Email,
		FirstName:      r.FirstName,
		MiddleName:     r.MiddleName,
		LastName:       r.LastName,
		SecondLastName: r.SecondLastName,
		Branch:         r.Branch,
		City:           r.City,
		JobTitle:       r.JobTitle,
		Mobile:         r.Mobile,
		Phone:          r.Phone,
		Address:        r.Address,
		Roles:          toRoles(r.Roles),
	}
}

func (r UpdateAccountRequest) input() goGuard.UpdateAccountInput {
	return goGuard.UpdateAccountInput{
		Branch:   r.Branch,
		City:     r.City,
		JobTitle: r.JobTitle,
		Mobile:   r.Mobile,
		Phone:    r.Phone,
		Address:  r.Address,
		Roles:    toRoles(r.Roles),
	}
}
