package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shieldops/backend/internal/models"
)

var (
	ErrSessionInvalid  = errors.New("session invalid")
	ErrSessionExpired  = errors.New("session expired")
	ErrRefreshMismatch = errors.New("refresh fingerprint mismatch")

	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrWebsiteNotFound = errors.New("website not found")
	ErrWebsiteExists   = errors.New("website already registered for user")
	ErrScanNotFound    = errors.New("scan not found")
	ErrIssueNotFound   = errors.New("issue not found")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Storage interface {
	SessionStore
	UserRepository
	WebsiteRepository
	ScanRepository
}

// SessionStore is the single source of truth for "is this session currently
// valid". Implementations must make ValidateAndTouch and RotateAccessToken
// safe against concurrent refresh calls for the same session: two racing
// refreshes may both return, but exactly one access token id remains
// authoritative afterward.
type SessionStore interface {
	// CreateSession deactivates any existing active session for the owning
	// user before inserting the new one. A prior session is never an error.
	CreateSession(ctx context.Context, session models.Session) error

	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// ValidateAndTouch returns the session if it is active, unexpired and
	// the presented fingerprint matches; otherwise ErrSessionInvalid,
	// ErrSessionExpired or ErrRefreshMismatch. Expiry is applied lazily:
	// the first touch after expires_at deactivates the row. On success
	// last_activity_at is updated.
	ValidateAndTouch(ctx context.Context, sessionID, fingerprint string) (*models.Session, error)

	// RotateAccessToken atomically replaces the session's active access
	// token id. Tokens bearing the previous id become unverifiable as soon
	// as the write is visible.
	RotateAccessToken(ctx context.Context, sessionID, accessTokenID string) error

	// Deactivate is idempotent.
	Deactivate(ctx context.Context, sessionID string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash, fullName string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type WebsiteRepository interface {
	CreateWebsite(ctx context.Context, website models.Website) (*models.Website, error)
	GetWebsite(ctx context.Context, userID, websiteID int64) (*models.Website, error)
	ListWebsites(ctx context.Context, userID int64) ([]models.Website, error)
	// CountWebsites with userID 0 counts across all users (public summary).
	CountWebsites(ctx context.Context, userID int64) (int, error)
	UpdateWebsite(ctx context.Context, website models.Website) error
	DeleteWebsite(ctx context.Context, userID, websiteID int64) error
}

type ScanRepository interface {
	CreateScan(ctx context.Context, scan models.Scan, issues []models.Issue) (*models.Scan, error)
	GetScan(ctx context.Context, userID, scanID int64) (*models.Scan, error)
	ListScans(ctx context.Context, userID int64) ([]models.Scan, error)
	ListIssues(ctx context.Context, userID int64, status string) ([]models.Issue, error)
	// UpdateIssueStatus transitions an issue the user owns; marking it
	// resolved stamps resolved_at once.
	UpdateIssueStatus(ctx context.Context, userID, issueID int64, status string) (*models.Issue, error)
	// LatestScan returns the website's most recent scan of any status.
	LatestScan(ctx context.Context, userID, websiteID int64) (*models.Scan, error)
	// LatestScansByWebsite returns each website's most recent completed
	// scan keyed by website id; userID 0 spans all users.
	LatestScansByWebsite(ctx context.Context, userID int64) (map[int64]models.Scan, error)
}

// SessionCache is an optional read-through cache in front of SessionStore
// lookups during access-token verification. A cached entry may lag a
// revocation by at most its TTL; the window is bounded by
// TokenConfig.VerifyCacheTTL.
type SessionCache interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	InvalidateSession(ctx context.Context, sessionID string) error
}
