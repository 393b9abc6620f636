package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

type ScanRepository struct {
	db storage.DBTX
}

func NewScanRepository(db storage.DBTX) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, website_id, scan_type, status, error_message, total_issues, high_issues, medium_issues, low_issues, scan_time, created_at`

func (r *ScanRepository) InsertScan(ctx context.Context, scan models.Scan) (*models.Scan, error) {
	var created models.Scan
	query := `INSERT INTO scans (website_id, scan_type, status, error_message, total_issues, high_issues, medium_issues, low_issues, scan_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING ` + scanColumns
	err := r.db.QueryRowContext(ctx, query,
		scan.WebsiteID, scan.ScanType, scan.Status, scan.ErrorMessage,
		scan.TotalIssues, scan.HighIssues, scan.MediumIssues, scan.LowIssues, scan.ScanTime,
	).Scan(
		&created.ID, &created.WebsiteID, &created.ScanType, &created.Status, &created.ErrorMessage,
		&created.TotalIssues, &created.HighIssues, &created.MediumIssues, &created.LowIssues,
		&created.ScanTime, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scan: %w", err)
	}
	return &created, nil
}

func (r *ScanRepository) InsertIssue(ctx context.Context, issue models.Issue) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO issues (scan_id, impact, issue_type, description, status, reported_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		issue.ScanID, issue.Impact, issue.IssueType, issue.Description, issue.Status, issue.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetScan(ctx context.Context, userID, scanID int64) (*models.Scan, error) {
	var s models.Scan
	query := `SELECT s.id, s.website_id, s.scan_type, s.status, s.error_message, s.total_issues, s.high_issues, s.medium_issues, s.low_issues, s.scan_time, s.created_at
		FROM scans s JOIN websites w ON w.id = s.website_id
		WHERE s.id = $1 AND w.user_id = $2`
	err := r.db.QueryRowContext(ctx, query, scanID, userID).Scan(
		&s.ID, &s.WebsiteID, &s.ScanType, &s.Status, &s.ErrorMessage,
		&s.TotalIssues, &s.HighIssues, &s.MediumIssues, &s.LowIssues, &s.ScanTime, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &s, nil
}

func (r *ScanRepository) ListScans(ctx context.Context, userID int64) ([]models.Scan, error) {
	query := `SELECT s.id, s.website_id, s.scan_type, s.status, s.error_message, s.total_issues, s.high_issues, s.medium_issues, s.low_issues, s.scan_time, s.created_at
		FROM scans s JOIN websites w ON w.id = s.website_id
		WHERE w.user_id = $1 ORDER BY s.scan_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []models.Scan
	for rows.Next() {
		var s models.Scan
		if err := rows.Scan(&s.ID, &s.WebsiteID, &s.ScanType, &s.Status, &s.ErrorMessage,
			&s.TotalIssues, &s.HighIssues, &s.MediumIssues, &s.LowIssues, &s.ScanTime, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

func (r *ScanRepository) ListIssues(ctx context.Context, userID int64, status string) ([]models.Issue, error) {
	query := `SELECT i.id, i.scan_id, i.impact, i.issue_type, i.description, i.status, i.reported_at, i.resolved_at
		FROM issues i
		JOIN scans s ON s.id = i.scan_id
		JOIN websites w ON w.id = s.website_id
		WHERE w.user_id = $1 AND ($2 = '' OR i.status = $2)
		ORDER BY i.reported_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []models.Issue
	for rows.Next() {
		var i models.Issue
		if err := rows.Scan(&i.ID, &i.ScanID, &i.Impact, &i.IssueType, &i.Description, &i.Status, &i.ReportedAt, &i.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// UpdateIssueStatus transitions an issue through its scan's website
// ownership. The first transition to resolved stamps resolved_at; later
// transitions keep the original timestamp.
func (r *ScanRepository) UpdateIssueStatus(ctx context.Context, userID, issueID int64, status string) (*models.Issue, error) {
	var i models.Issue
	query := `UPDATE issues i SET status = $3,
			resolved_at = CASE WHEN $3 = 'resolved' AND i.resolved_at IS NULL THEN NOW() ELSE i.resolved_at END
		FROM scans s JOIN websites w ON w.id = s.website_id
		WHERE i.id = $1 AND s.id = i.scan_id AND w.user_id = $2
		RETURNING i.id, i.scan_id, i.impact, i.issue_type, i.description, i.status, i.reported_at, i.resolved_at`
	err := r.db.QueryRowContext(ctx, query, issueID, userID, status).Scan(
		&i.ID, &i.ScanID, &i.Impact, &i.IssueType, &i.Description, &i.Status, &i.ReportedAt, &i.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	return &i, nil
}

// LatestScan returns the website's most recent scan regardless of status, so
// a failed run shows up in the dashboard instead of being masked by an older
// success.
func (r *ScanRepository) LatestScan(ctx context.Context, userID, websiteID int64) (*models.Scan, error) {
	var s models.Scan
	query := `SELECT s.id, s.website_id, s.scan_type, s.status, s.error_message, s.total_issues, s.high_issues, s.medium_issues, s.low_issues, s.scan_time, s.created_at
		FROM scans s JOIN websites w ON w.id = s.website_id
		WHERE s.website_id = $2 AND w.user_id = $1
		ORDER BY s.scan_time DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, userID, websiteID).Scan(
		&s.ID, &s.WebsiteID, &s.ScanType, &s.Status, &s.ErrorMessage,
		&s.TotalIssues, &s.HighIssues, &s.MediumIssues, &s.LowIssues, &s.ScanTime, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return &s, nil
}

// LatestScansByWebsite returns each website's most recent completed scan,
// keyed by website id. Used for the security summary; userID 0 spans all
// users (public landing data).
func (r *ScanRepository) LatestScansByWebsite(ctx context.Context, userID int64) (map[int64]models.Scan, error) {
	query := `SELECT DISTINCT ON (s.website_id) s.id, s.website_id, s.scan_type, s.status, s.error_message, s.total_issues, s.high_issues, s.medium_issues, s.low_issues, s.scan_time, s.created_at
		FROM scans s JOIN websites w ON w.id = s.website_id
		WHERE ($1 = 0 OR w.user_id = $1) AND s.status = 'completed'
		ORDER BY s.website_id, s.scan_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest scans: %w", err)
	}
	defer rows.Close()

	latest := make(map[int64]models.Scan)
	for rows.Next() {
		var s models.Scan
		if err := rows.Scan(&s.ID, &s.WebsiteID, &s.ScanType, &s.Status, &s.ErrorMessage,
			&s.TotalIssues, &s.HighIssues, &s.MediumIssues, &s.LowIssues, &s.ScanTime, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		latest[s.WebsiteID] = s
	}
	return latest, rows.Err()
}
