// Package user holds the user record and the email-only authentication
// service: login, registration, profile lookup and token refresh.
//
// There are no passwords. A caller proves nothing beyond knowing an email
// address; the service only issues a signed token naming the user.
package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
)

// User is an account identified by a unique email address.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy of u.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Repository is the user persistence the service needs. Missing users are
// reported as apperr.ErrRecordNotFound, duplicate emails on CreateUser as
// apperr.ErrDuplicate.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}

// NormalizeEmail trims and lower-cases email and checks that it is a bare
// address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email is invalid")
	}
	return email, nil
}
