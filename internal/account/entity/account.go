package entity

import "time"

// Account represents a row in the `accounts` table. Identifier is unique and
// compared case-sensitively; it is an email or a username depending on how the
// client registered.
type Account struct {
	ID                int64      `db:"id"`
	Identifier        string     `db:"identifier"`
	Email             *string    `db:"email"`
	DisplayName       *string    `db:"display_name"`
	PasswordHash      string     `db:"password_hash"`
	PasswordAlgo      string     `db:"password_algo"`
	PasswordUpdatedAt *time.Time `db:"password_updated_at"`
	LastLoginAt       *time.Time `db:"last_login_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// ContactAddress is where reset notifications go: the stored email when
// present, otherwise the identifier itself.
func (a *Account) ContactAddress() string {
	if a.Email != nil && *a.Email != "" {
		return *a.Email
	}
	return a.Identifier
}
