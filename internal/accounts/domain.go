// Package accounts holds the credential store: one record per account with its
// password hash, role, status flags and pending one-time credentials.
package accounts

import (
	"strings"
	"time"

	"github.com/gazette-cms/gazette/internal/shared"
)

// Role is an account's permission class.
type Role string

// Known roles.
const (
	RoleCustomer   Role = "CUSTOMER"
	RoleEditor     Role = "EDITOR"
	RolePublisher  Role = "PUBLISHER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Roles lists every role, lowest first.
func Roles() []Role {
	return []Role{RoleCustomer, RoleEditor, RolePublisher, RoleAdmin, RoleSuperAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// ErrUnknownRole is returned by ParseRole.
var ErrUnknownRole = shared.NewKindError(shared.ErrInvalidInput, "unknown role")

// ParseRole converts user input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Pending is a one-time secret awaiting use.
type Pending struct {
	Value     string
	ExpiresAt time.Time
}

// Subscription attributes are carried but never inspected by authorization.
type Subscription struct {
	Type    string     `json:"type,omitempty"`
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// Account is a stored user record.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsActive     bool
	IsVerified   bool
	OTP          *Pending
	Reset        *Pending
	Subscription Subscription
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the public projection of an Account.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Identity returns the public fields of the account.
func (a Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

// NewAccount carries the fields needed to create a record.
type NewAccount struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsActive     bool
	IsVerified   bool
}

// Patch is a field-level merge; nil fields are left untouched.
type Patch struct {
	Name         *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
	IsVerified   *bool
	Subscription *Subscription

	// SetOTP replaces any pending code; ClearOTP removes it.
	SetOTP   *Pending
	ClearOTP bool
	// SetReset replaces any pending reset token; ClearReset removes it.
	SetReset   *Pending
	ClearReset bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.PasswordHash == nil && p.Role == nil && p.IsActive == nil &&
		p.IsVerified == nil && p.Subscription == nil && p.SetOTP == nil && !p.ClearOTP &&
		p.SetReset == nil && !p.ClearReset
}

// Apply merges the patch into a copy of the account.
func (p Patch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.IsVerified != nil {
		a.IsVerified = *p.IsVerified
	}
	if p.Subscription != nil {
		a.Subscription = *p.Subscription
	}
	if p.ClearOTP {
		a.OTP = nil
	}
	if p.SetOTP != nil {
		otp := *p.SetOTP
		a.OTP = &otp
	}
	if p.ClearReset {
		a.Reset = nil
	}
	if p.SetReset != nil {
		reset := *p.SetReset
		a.Reset = &reset
	}
	return a
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
