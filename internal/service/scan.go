package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/scanner"
	"github.com/shieldops/backend/internal/storage"
)

var (
	ErrInvalidScanType    = errors.New("invalid scan type")
	ErrInvalidIssueStatus = errors.New("invalid issue status")
)

// ScanEngine is the black-box scanning backend: URL in, findings out.
type ScanEngine interface {
	Scan(ctx context.Context, targetURL, scanType string) ([]scanner.Finding, error)
}

type ScanService struct {
	websites storage.WebsiteRepository
	scans    storage.ScanRepository
	engine   ScanEngine
	alerts   *AlertService
	log      *zap.SugaredLogger
}

func NewScanService(websites storage.WebsiteRepository, scans storage.ScanRepository, engine ScanEngine, alerts *AlertService, log *zap.SugaredLogger) *ScanService {
	return &ScanService{
		websites: websites,
		scans:    scans,
		engine:   engine,
		alerts:   alerts,
		log:      log,
	}
}

// RunScan resolves the website (ownership check included), calls the scan
// engine and persists the result. An engine failure is recorded as a failed
// scan, not surfaced as a 5xx: the dashboard shows it alongside successes.
func (s *ScanService) RunScan(ctx context.Context, userID int64, req models.ScanCreateRequest) (*models.Scan, error) {
	if req.ScanType != models.ScanTypeQuick && req.ScanType != models.ScanTypeDeep {
		return nil, ErrInvalidScanType
	}

	website, err := s.websites.GetWebsite(ctx, userID, req.WebsiteID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	scan := models.Scan{
		WebsiteID: website.ID,
		ScanType:  req.ScanType,
		ScanTime:  now,
	}

	findings, err := s.engine.Scan(ctx, website.URL, req.ScanType)
	if err != nil {
		s.log.Warnw("scan engine failed", "websiteID", website.ID, "error", err)
		scan.Status = models.ScanStatusFailed
		scan.ErrorMessage = err.Error()
		return s.scans.CreateScan(ctx, scan, nil)
	}

	issues := make([]models.Issue, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, models.Issue{
			Impact:      f.Impact,
			IssueType:   f.Type,
			Description: f.Description,
			Status:      models.IssueStatusOpen,
			ReportedAt:  now,
		})
		switch f.Impact {
		case models.ImpactHigh:
			scan.HighIssues++
		case models.ImpactMedium:
			scan.MediumIssues++
		case models.ImpactLow:
			scan.LowIssues++
		}
	}
	scan.Status = models.ScanStatusCompleted
	scan.TotalIssues = len(issues)

	created, err := s.scans.CreateScan(ctx, scan, issues)
	if err != nil {
		return nil, fmt.Errorf("persist scan: %w", err)
	}

	if created.HighIssues > 0 && s.alerts != nil {
		s.alerts.NotifyHighRiskIssues(ctx, map[string]interface{}{
			"website_id":  website.ID,
			"url":         website.URL,
			"scan_id":     created.ID,
			"high_issues": created.HighIssues,
		})
	}

	s.log.Infow("scan completed", "websiteID", website.ID, "scanID", created.ID, "issues", created.TotalIssues)
	return created, nil
}

func (s *ScanService) GetScan(ctx context.Context, userID, scanID int64) (*models.Scan, error) {
	return s.scans.GetScan(ctx, userID, scanID)
}

func (s *ScanService) ListScans(ctx context.Context, userID int64) ([]models.Scan, error) {
	return s.scans.ListScans(ctx, userID)
}

func (s *ScanService) ListIssues(ctx context.Context, userID int64, status string) ([]models.Issue, error) {
	return s.scans.ListIssues(ctx, userID, status)
}

// UpdateIssue moves an issue between open, resolved and ignored. This is the
// only write path for issue state; scans always report issues as open.
func (s *ScanService) UpdateIssue(ctx context.Context, userID, issueID int64, req models.IssueUpdateRequest) (*models.Issue, error) {
	switch req.Status {
	case models.IssueStatusOpen, models.IssueStatusResolved, models.IssueStatusIgnored:
	default:
		return nil, ErrInvalidIssueStatus
	}
	return s.scans.UpdateIssueStatus(ctx, userID, issueID, req.Status)
}

// LatestScan returns the most recent scan for one website, failed runs
// included.
func (s *ScanService) LatestScan(ctx context.Context, userID, websiteID int64) (*models.Scan, error) {
	if _, err := s.websites.GetWebsite(ctx, userID, websiteID); err != nil {
		return nil, err
	}
	return s.scans.LatestScan(ctx, userID, websiteID)
}

// Summary aggregates the latest completed scan per website. A website is
// secure when its latest scan found no HIGH-impact issues.
func (s *ScanService) Summary(ctx context.Context, userID int64) (*models.SecuritySummary, error) {
	total, err := s.websites.CountWebsites(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest, err := s.scans.LatestScansByWebsite(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := models.SecuritySummary{TotalWebsites: total}
	for _, scan := range latest {
		if scan.HighIssues == 0 {
			summary.SecureWebsites++
		}
		summary.TotalIssues += scan.TotalIssues
		summary.HighIssues += scan.HighIssues
		summary.MediumIssues += scan.MediumIssues
		summary.LowIssues += scan.LowIssues
		if summary.LastScanTime == nil || scan.ScanTime.After(*summary.LastScanTime) {
			t := scan.ScanTime
			summary.LastScanTime = &t
		}
	}

	if scanned := len(latest); scanned > 0 {
		summary.SecurityScore = math.Round(float64(summary.SecureWebsites)/float64(scanned)*1000) / 10
	}
	return &summary, nil
}

// LandingPageData is the public showcase payload, aggregated across all
// users. It requires no authentication.
func (s *ScanService) LandingPageData(ctx context.Context) (*models.LandingPageData, error) {
	summary, err := s.Summary(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &models.LandingPageData{
		LastUpdated: time.Now(),
		Summary:     *summary,
		SecurityFeatures: map[string]bool{
			"https_enforced":          true,
			"tls_validation":          true,
			"security_headers":        true,
			"owasp_aligned":           true,
			"vulnerability_detection": true,
			"responsible_disclosure":  true,
		},
	}, nil
}
