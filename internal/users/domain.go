// Package users implements account administration for admins.
package users

import (
	"time"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/shared"
)

// User is the admin view of an account. Credentials never leave the store.
type User struct {
	ID           int64                 `json:"id"`
	Email        string                `json:"email"`
	Name         string                `json:"name"`
	Role         accounts.Role         `json:"role"`
	IsActive     bool                  `json:"is_active"`
	IsVerified   bool                  `json:"is_verified"`
	Subscription accounts.Subscription `json:"subscription"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func fromAccount(a accounts.Account) User {
	return User{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		IsActive:     a.IsActive,
		IsVerified:   a.IsVerified,
		Subscription: a.Subscription,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// ProvisionInput creates a verified account directly.
type ProvisionInput struct {
	Email    string
	Name     string
	Password string
	Role     accounts.Role
	Inactive bool
}

// UpdateInput changes selected fields; nil fields are kept.
type UpdateInput struct {
	Name         *string
	Role         *accounts.Role
	IsActive     *bool
	Subscription *accounts.Subscription
}

// ErrSuperAdminRequired guards SUPER_ADMIN grants and SUPER_ADMIN targets.
var ErrSuperAdminRequired = shared.NewKindError(shared.ErrForbidden, "forbidden")

// ErrNothingToUpdate is returned for an empty update.
var ErrNothingToUpdate = shared.NewKindError(shared.ErrInvalidInput, "no fields to update")
