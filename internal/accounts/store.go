package accounts

import (
	"context"

	"github.com/gazette-cms/gazette/internal/shared"
)

var (
	// ErrNotFound indicates no account matched the lookup.
	ErrNotFound = shared.NewKindError(shared.ErrNotFound, "account not found")
	// ErrEmailTaken indicates another account already owns the address.
	ErrEmailTaken = shared.NewKindError(shared.ErrConflict, "email already registered")
	// ErrDuplicateToken indicates another account already holds the reset token.
	ErrDuplicateToken = shared.NewKindError(shared.ErrConflict, "reset token already issued")
)

// ModifyFunc inspects the freshest copy of an account and returns the patch to
// persist. Returning an error aborts the update.
type ModifyFunc func(Account) (Patch, error)

// Store defines persistence operations for accounts.
type Store interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByResetToken(ctx context.Context, token string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, fields NewAccount) (Account, error)
	Update(ctx context.Context, id int64, patch Patch) (Account, error)
	// Modify applies fn as one atomic read-modify-write against the record.
	Modify(ctx context.Context, id int64, fn ModifyFunc) (Account, error)
	Delete(ctx context.Context, id int64) error
}
