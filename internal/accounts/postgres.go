package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gazette-cms/gazette/internal/platform/db"
)

const selectColumns = `SELECT id, email, name, password_hash, role, is_active, is_verified,
	otp_code, otp_expires_at, reset_token, reset_token_expires_at,
	subscription_type, subscription_start, subscription_end, created_at, updated_at
	FROM users`

const (
	emailConstraint      = "users_email_key"
	resetTokenConstraint = "users_reset_token_key"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindByEmail fetches an account by address.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, selectColumns+` WHERE email = $1`, NormalizeEmail(email)))
}

// FindByID fetches an account by id.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
}

// FindByResetToken fetches the account holding token, expired or not.
func (s *PostgresStore) FindByResetToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx, selectColumns+` WHERE reset_token = $1`, token))
}

// List returns all accounts ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new account.
func (s *PostgresStore) Create(ctx context.Context, fields NewAccount) (Account, error) {
	const query = `INSERT INTO users (email, name, password_hash, role, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`
	now := time.Now().UTC()
	acc := Account{
		Email:        NormalizeEmail(fields.Email),
		Name:         fields.Name,
		PasswordHash: fields.PasswordHash,
		Role:         fields.Role,
		IsActive:     fields.IsActive,
		IsVerified:   fields.IsVerified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.pool.QueryRow(ctx, query, acc.Email, acc.Name, acc.PasswordHash, string(acc.Role), acc.IsActive, acc.IsVerified, now).Scan(&acc.ID)
	if err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("accounts: create: %w", err)
	}
	return acc, nil
}

// Update merges patch into the account.
func (s *PostgresStore) Update(ctx context.Context, id int64, patch Patch) (Account, error) {
	return s.Modify(ctx, id, func(Account) (Patch, error) { return patch, nil })
}

// Modify locks the row, runs fn against it and writes the merged result in
// the same transaction.
func (s *PostgresStore) Modify(ctx context.Context, id int64, fn ModifyFunc) (Account, error) {
	var result Account
	err := db.WithTxOptions(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		current, err := scanAccount(tx.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		patch, err := fn(current)
		if err != nil {
			return err
		}
		if patch.Empty() {
			result = current
			return nil
		}
		next := patch.Apply(current)
		next.UpdatedAt = time.Now().UTC()
		if err := writeAccount(ctx, tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return result, nil
}

// Delete removes an account.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("accounts: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func writeAccount(ctx context.Context, tx pgx.Tx, acc Account) error {
	const query = `UPDATE users SET name = $1, password_hash = $2, role = $3, is_active = $4, is_verified = $5,
		otp_code = $6, otp_expires_at = $7, reset_token = $8, reset_token_expires_at = $9,
		subscription_type = $10, subscription_start = $11, subscription_end = $12, updated_at = $13
		WHERE id = $14`
	otpCode, otpExpires := pendingColumns(acc.OTP)
	resetToken, resetExpires := pendingColumns(acc.Reset)
	var subType *string
	if acc.Subscription.Type != "" {
		subType = &acc.Subscription.Type
	}
	_, err := tx.Exec(ctx, query,
		acc.Name, acc.PasswordHash, string(acc.Role), acc.IsActive, acc.IsVerified,
		otpCode, otpExpires, resetToken, resetExpires,
		subType, acc.Subscription.StartAt, acc.Subscription.EndAt, acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err, resetTokenConstraint) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("accounts: update: %w", err)
	}
	return nil
}

func pendingColumns(p *Pending) (*string, *time.Time) {
	if p == nil {
		return nil, nil
	}
	value := p.Value
	expires := p.ExpiresAt.UTC()
	return &value, &expires
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc                      Account
		role                     string
		otpCode, resetToken      *string
		otpExpires, resetExpires *time.Time
		subType                  *string
		subStart, subEnd         *time.Time
	)
	err := row.Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &role, &acc.IsActive, &acc.IsVerified,
		&otpCode, &otpExpires, &resetToken, &resetExpires,
		&subType, &subStart, &subEnd, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acc.Role = Role(role)
	acc.OTP = pendingFromColumns(otpCode, otpExpires)
	acc.Reset = pendingFromColumns(resetToken, resetExpires)
	if subType != nil {
		acc.Subscription.Type = *subType
	}
	acc.Subscription.StartAt = subStart
	acc.Subscription.EndAt = subEnd
	return acc, nil
}

// A value without an expiry is treated as no pending secret at all.
func pendingFromColumns(value *string, expires *time.Time) *Pending {
	if value == nil || expires == nil {
		return nil
	}
	return &Pending{Value: *value, ExpiresAt: *expires}
}

var _ Store = (*PostgresStore)(nil)

// PurgeExpired clears one-time codes and reset tokens that expired before now.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := db.WithTxOptions(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		otp, err := tx.Exec(ctx, `UPDATE users SET otp_code = NULL, otp_expires_at = NULL WHERE otp_expires_at < $1`, now)
		if err != nil {
			return fmt.Errorf("purge otp: %w", err)
		}
		reset, err := tx.Exec(ctx, `UPDATE users SET reset_token = NULL, reset_token_expires_at = NULL WHERE reset_token_expires_at < $1`, now)
		if err != nil {
			return fmt.Errorf("purge reset: %w", err)
		}
		total = otp.RowsAffected() + reset.RowsAffected()
		return nil
	})
	return total, err
}
