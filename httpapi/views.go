package httpapi

import goGuard "github.com/MrEthical07/goGuard"

// AccountView is the public representation of an account. Password hashes
// and history never leave the server.
type AccountView struct {
	ID                string   `json:"id"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	FullName          string   `json:"fullName"`
	Branch            string   `json:"branch"`
	City              string   `json:"city"`
	JobTitle          string   `json:"jobTitle"`
	Mobile            string   `json:"mobile"`
	Phone             string   `json:"phone"`
	Address           string   `json:"address"`
	Locked            bool     `json:"locked"`
	FailedAttempts    int      `json:"failedAttempts"`
	PasswordExpiresAt string   `json:"passwordExpiresAt"`
	Roles             []string `json:"roles"`
}

const dateLayout = "2006-01-02"

func accountView(a goGuard.Account) AccountView {
	roles := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		roles[i] = string(r)
	}
	return AccountView{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		FullName:          a.FullName(),
		Branch:            a.Branch,
		City:              a.City,
		JobTitle:          a.JobTitle,
		Mobile:            a.Mobile,
		Phone:             a.Phone,
		Address:           a.Address,
		Locked:            a.Locked,
		FailedAttempts:    a.FailedAttempts,
		PasswordExpiresAt: a.PasswordExpiresAt.UTC().Format(dateLayout),
		Roles:             roles,
	}
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// ResetPasswordResponse carries the generated password exactly once.
type ResetPasswordResponse struct {
	NewPassword string `json:"newPassword"`
}
