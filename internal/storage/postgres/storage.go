package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"time"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*SessionRepository
	*WebsiteRepository
	*ScanRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		UserRepository:    NewUserRepository(db),
		SessionRepository: NewSessionRepository(db),
		WebsiteRepository: NewWebsiteRepository(db),
		ScanRepository:    NewScanRepository(db),
	}
}

// CreateSession supersedes any prior active session for the user and inserts
// the new one in a single transaction, so no interleaving can leave two
// active sessions for one user.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)

	if err := sessionRepoTx.DeactivateUserSessions(ctx, session.UserID); err != nil {
		return fmt.Errorf("failed to supersede prior session in tx: %w", err)
	}
	if err := sessionRepoTx.InsertSession(ctx, session); err != nil {
		return fmt.Errorf("failed to create session in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ValidateAndTouch checks the session under a row lock so concurrent
// refreshes for the same session serialize. Expiry is applied lazily: the
// first touch past expires_at deactivates the row.
func (s *Storage) ValidateAndTouch(ctx context.Context, sessionID, fingerprint string) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)

	session, err := sessionRepoTx.GetSessionForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, storage.ErrSessionInvalid
	}
	if !session.ExpiresAt.After(time.Now()) {
		if err := sessionRepoTx.Deactivate(ctx, sessionID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return nil, storage.ErrSessionExpired
	}
	if subtle.ConstantTimeCompare([]byte(session.RefreshFingerprint), []byte(fingerprint)) != 1 {
		return nil, storage.ErrRefreshMismatch
	}

	if err := sessionRepoTx.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	session.LastActivityAt = time.Now()
	return session, nil
}

// CreateScan persists the scan row and its issues in one transaction.
func (s *Storage) CreateScan(ctx context.Context, scan models.Scan, issues []models.Issue) (*models.Scan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanRepoTx := NewScanRepository(tx)

	created, err := scanRepoTx.InsertScan(ctx, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan in tx: %w", err)
	}
	for _, issue := range issues {
		issue.ScanID = created.ID
		if err := scanRepoTx.InsertIssue(ctx, issue); err != nil {
			return nil, fmt.Errorf("failed to create issue in tx: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return created, nil
}
