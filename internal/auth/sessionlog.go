package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gazette-cms/gazette/internal/shared"
)

// SessionDB is the subset of pgxpool.Pool used by PGSessionLog.
type SessionDB interface {
	shared.Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSessionLog stores the session audit trail in user_sessions.
type PGSessionLog struct {
	db SessionDB
}

// NewPGSessionLog constructs a PGSessionLog over a pgx pool.
func NewPGSessionLog(db SessionDB) *PGSessionLog {
	return &PGSessionLog{db: db}
}

// CreateSession inserts a session row.
func (l *PGSessionLog) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := l.db.Exec(ctx, `INSERT INTO user_sessions (id, user_id, role, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`,
		rec.ID, rec.UserID, string(rec.Role), rec.CreatedAt, rec.ExpiresAt, rec.IP, rec.UserAgent)
	return err
}

// DeleteSession removes a session row.
func (l *PGSessionLog) DeleteSession(ctx context.Context, id string) error {
	_, err := l.db.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

// ListUserSessions returns the ids of sessions recorded for userID.
func (l *PGSessionLog) ListUserSessions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := l.db.Query(ctx, `SELECT id FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurgeExpired deletes rows whose session expired before now.
func (l *PGSessionLog) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ SessionLog = (*PGSessionLog)(nil)
