package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `session_id, user_id, refresh_fingerprint, active_access_token_id, is_active, client_ip, user_agent, created_at, last_activity_at, expires_at`

func scanSession(row *sql.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.SessionID,
		&s.UserID,
		&s.RefreshFingerprint,
		&s.ActiveAccessTokenID,
		&s.IsActive,
		&s.IPAddress,
		&s.UserAgent,
		&s.CreatedAt,
		&s.LastActivityAt,
		&s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) InsertSession(ctx context.Context, session models.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		session.SessionID,
		session.UserID,
		session.RefreshFingerprint,
		session.ActiveAccessTokenID,
		session.IsActive,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.LastActivityAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// DeactivateUserSessions is the single-login enforcement point: a new login
// supersedes every prior active session for the user.
func (r *SessionRepository) DeactivateUserSessions(ctx context.Context, userID int64) error {
	query := `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("deactivate user sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

// GetSessionForUpdate locks the row so a concurrent refresh for the same
// session serializes behind this transaction.
func (r *SessionRepository) GetSessionForUpdate(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *SessionRepository) TouchSession(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET last_activity_at = NOW() WHERE session_id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) RotateAccessToken(ctx context.Context, sessionID, accessTokenID string) error {
	query := `UPDATE sessions SET active_access_token_id = $2 WHERE session_id = $1 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, sessionID, accessTokenID); err != nil {
		return fmt.Errorf("rotate access token: %w", err)
	}
	return nil
}

func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET is_active = FALSE WHERE session_id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}
