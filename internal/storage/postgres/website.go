package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

type WebsiteRepository struct {
	db storage.DBTX
}

func NewWebsiteRepository(db storage.DBTX) *WebsiteRepository {
	return &WebsiteRepository{db: db}
}

const websiteColumns = `id, user_id, url, name, description, is_active, created_at, updated_at`

func (r *WebsiteRepository) CreateWebsite(ctx context.Context, website models.Website) (*models.Website, error) {
	var w models.Website
	query := `INSERT INTO websites (user_id, url, name, description) VALUES ($1, $2, $3, $4)
		RETURNING ` + websiteColumns
	err := r.db.QueryRowContext(ctx, query, website.UserID, website.URL, website.Name, website.Description).Scan(
		&w.ID, &w.UserID, &w.URL, &w.Name, &w.Description, &w.IsActive, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return nil, storage.ErrWebsiteExists
		}
		return nil, fmt.Errorf("failed to create website: %w", err)
	}
	return &w, nil
}

func (r *WebsiteRepository) GetWebsite(ctx context.Context, userID, websiteID int64) (*models.Website, error) {
	var w models.Website
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, websiteID, userID).Scan(
		&w.ID, &w.UserID, &w.URL, &w.Name, &w.Description, &w.IsActive, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("failed to get website: %w", err)
	}
	return &w, nil
}

func (r *WebsiteRepository) ListWebsites(ctx context.Context, userID int64) ([]models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()

	var websites []models.Website
	for rows.Next() {
		var w models.Website
		if err := rows.Scan(&w.ID, &w.UserID, &w.URL, &w.Name, &w.Description, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}

func (r *WebsiteRepository) CountWebsites(ctx context.Context, userID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM websites WHERE ($1 = 0 OR user_id = $1) AND is_active`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count websites: %w", err)
	}
	return count, nil
}

func (r *WebsiteRepository) UpdateWebsite(ctx context.Context, website models.Website) error {
	query := `UPDATE websites SET name = $3, description = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, website.ID, website.UserID, website.Name, website.Description, website.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update website: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrWebsiteNotFound
	}
	return nil
}

func (r *WebsiteRepository) DeleteWebsite(ctx context.Context, userID, websiteID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM websites WHERE id = $1 AND user_id = $2`, websiteID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete website: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrWebsiteNotFound
	}
	return nil
}
