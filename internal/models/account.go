package models

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Account is a registered user of the chat directory.
type Account struct {
	Username    string    `db:"username" json:"username"`
	Password    string    `db:"password" json:"-"`
	Email       string    `db:"email" json:"email"`
	FirstName   string    `db:"first_name" json:"firstName"`
	LastName    string    `db:"last_name" json:"lastName"`
	Phone       string    `db:"phone" json:"phone"`
	Status      string    `db:"status" json:"status"`
	InviteToken string    `db:"invite_token" json:"-"`
	InviteCode  string    `db:"invite_code" json:"-"`
	Connections []string  `db:"-" json:"connections,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Active reports whether the account may log in and appear in contact lists.
func (a Account) Active() bool {
	return a.Status != StatusInactive
}

// AccountSummary is the admin listing view of an account.
type AccountSummary struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
}

// Registration is a self-service signup request.
type Registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}
