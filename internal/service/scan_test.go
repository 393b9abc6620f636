package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/scanner"
	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/storage"
)

type fakeWebsiteRepo struct {
	websites map[int64]models.Website
}

func (f *fakeWebsiteRepo) CreateWebsite(_ context.Context, w models.Website) (*models.Website, error) {
	f.websites[w.ID] = w
	return &w, nil
}

func (f *fakeWebsiteRepo) GetWebsite(_ context.Context, userID, websiteID int64) (*models.Website, error) {
	w, ok := f.websites[websiteID]
	if !ok || w.UserID != userID {
		return nil, storage.ErrWebsiteNotFound
	}
	return &w, nil
}

func (f *fakeWebsiteRepo) ListWebsites(_ context.Context, userID int64) ([]models.Website, error) {
	var out []models.Website
	for _, w := range f.websites {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebsiteRepo) CountWebsites(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, w := range f.websites {
		if userID == 0 || w.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeWebsiteRepo) UpdateWebsite(_ context.Context, w models.Website) error {
	f.websites[w.ID] = w
	return nil
}

func (f *fakeWebsiteRepo) DeleteWebsite(_ context.Context, _, websiteID int64) error {
	delete(f.websites, websiteID)
	return nil
}

type fakeScanRepo struct {
	nextID      int64
	nextIssueID int64
	ownerID     int64
	scans       []models.Scan
	issues      []models.Issue
	latest      map[int64]models.Scan
}

func (f *fakeScanRepo) CreateScan(_ context.Context, scan models.Scan, issues []models.Issue) (*models.Scan, error) {
	f.nextID++
	scan.ID = f.nextID
	f.scans = append(f.scans, scan)
	for _, issue := range issues {
		f.nextIssueID++
		issue.ID = f.nextIssueID
		issue.ScanID = scan.ID
		f.issues = append(f.issues, issue)
	}
	return &scan, nil
}

func (f *fakeScanRepo) GetScan(_ context.Context, _, scanID int64) (*models.Scan, error) {
	for _, s := range f.scans {
		if s.ID == scanID {
			return &s, nil
		}
	}
	return nil, storage.ErrScanNotFound
}

func (f *fakeScanRepo) ListScans(_ context.Context, _ int64) ([]models.Scan, error) {
	return f.scans, nil
}

func (f *fakeScanRepo) ListIssues(_ context.Context, _ int64, status string) ([]models.Issue, error) {
	var out []models.Issue
	for _, i := range f.issues {
		if status == "" || i.Status == status {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeScanRepo) UpdateIssueStatus(_ context.Context, userID, issueID int64, status string) (*models.Issue, error) {
	if userID != f.ownerID {
		return nil, storage.ErrIssueNotFound
	}
	for n, issue := range f.issues {
		if issue.ID != issueID {
			continue
		}
		issue.Status = status
		if status == models.IssueStatusResolved && issue.ResolvedAt == nil {
			now := time.Now()
			issue.ResolvedAt = &now
		}
		f.issues[n] = issue
		return &issue, nil
	}
	return nil, storage.ErrIssueNotFound
}

func (f *fakeScanRepo) LatestScan(_ context.Context, _, websiteID int64) (*models.Scan, error) {
	var latest *models.Scan
	for n := range f.scans {
		s := f.scans[n]
		if s.WebsiteID != websiteID {
			continue
		}
		if latest == nil || s.ScanTime.After(latest.ScanTime) {
			latest = &f.scans[n]
		}
	}
	if latest == nil {
		return nil, storage.ErrScanNotFound
	}
	return latest, nil
}

func (f *fakeScanRepo) LatestScansByWebsite(_ context.Context, _ int64) (map[int64]models.Scan, error) {
	return f.latest, nil
}

type fakeEngine struct {
	findings []scanner.Finding
	err      error
}

func (f *fakeEngine) Scan(_ context.Context, _, _ string) ([]scanner.Finding, error) {
	return f.findings, f.err
}

func newScanFixture(engine service.ScanEngine) (*service.ScanService, *fakeWebsiteRepo, *fakeScanRepo) {
	websites := &fakeWebsiteRepo{websites: map[int64]models.Website{
		1: {ID: 1, UserID: 10, URL: "https://example.com", IsActive: true},
	}}
	scans := &fakeScanRepo{ownerID: 10, latest: map[int64]models.Scan{}}
	svc := service.NewScanService(websites, scans, engine, nil, zap.NewNop().Sugar())
	return svc, websites, scans
}

func TestRunScanCountsIssuesByImpact(t *testing.T) {
	engine := &fakeEngine{findings: []scanner.Finding{
		{Impact: models.ImpactHigh, Type: "missing_hsts", Description: "no HSTS header"},
		{Impact: models.ImpactHigh, Type: "weak_tls", Description: "TLS 1.0 enabled"},
		{Impact: models.ImpactMedium, Type: "missing_csp", Description: "no CSP header"},
		{Impact: models.ImpactLow, Type: "server_banner", Description: "server version exposed"},
	}}
	svc, _, scans := newScanFixture(engine)

	scan, err := svc.RunScan(context.Background(), 10, models.ScanCreateRequest{WebsiteID: 1, ScanType: models.ScanTypeQuick})
	require.NoError(t, err)

	assert.Equal(t, models.ScanStatusCompleted, scan.Status)
	assert.Equal(t, 4, scan.TotalIssues)
	assert.Equal(t, 2, scan.HighIssues)
	assert.Equal(t, 1, scan.MediumIssues)
	assert.Equal(t, 1, scan.LowIssues)
	assert.Len(t, scans.issues, 4)
}

func TestRunScanEngineFailureRecordsFailedScan(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine unreachable")}
	svc, _, _ := newScanFixture(engine)

	scan, err := svc.RunScan(context.Background(), 10, models.ScanCreateRequest{WebsiteID: 1, ScanType: models.ScanTypeDeep})
	require.NoError(t, err)

	assert.Equal(t, models.ScanStatusFailed, scan.Status)
	assert.Contains(t, scan.ErrorMessage, "engine unreachable")
	assert.Zero(t, scan.TotalIssues)
}

func TestRunScanRejectsUnknownType(t *testing.T) {
	svc, _, _ := newScanFixture(&fakeEngine{})

	_, err := svc.RunScan(context.Background(), 10, models.ScanCreateRequest{WebsiteID: 1, ScanType: "full"})
	assert.ErrorIs(t, err, service.ErrInvalidScanType)
}

func TestRunScanEnforcesOwnership(t *testing.T) {
	svc, _, _ := newScanFixture(&fakeEngine{})

	_, err := svc.RunScan(context.Background(), 99, models.ScanCreateRequest{WebsiteID: 1, ScanType: models.ScanTypeQuick})
	assert.ErrorIs(t, err, storage.ErrWebsiteNotFound)
}

func TestUpdateIssueLifecycle(t *testing.T) {
	engine := &fakeEngine{findings: []scanner.Finding{
		{Impact: models.ImpactHigh, Type: "missing_hsts", Description: "no HSTS header"},
	}}
	svc, _, scans := newScanFixture(engine)

	_, err := svc.RunScan(context.Background(), 10, models.ScanCreateRequest{WebsiteID: 1, ScanType: models.ScanTypeQuick})
	require.NoError(t, err)
	issueID := scans.issues[0].ID

	// Scans always report open issues; resolved and ignored only exist
	// through this transition.
	resolved, err := svc.UpdateIssue(context.Background(), 10, issueID, models.IssueUpdateRequest{Status: models.IssueStatusResolved})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	// Reopening and re-resolving keeps the original resolution timestamp.
	reopened, err := svc.UpdateIssue(context.Background(), 10, issueID, models.IssueUpdateRequest{Status: models.IssueStatusOpen})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, reopened.Status)

	again, err := svc.UpdateIssue(context.Background(), 10, issueID, models.IssueUpdateRequest{Status: models.IssueStatusResolved})
	require.NoError(t, err)
	assert.True(t, again.ResolvedAt.Equal(firstResolvedAt))

	// The transition shows up in the status filter.
	open, err := svc.ListIssues(context.Background(), 10, models.IssueStatusOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
	done, err := svc.ListIssues(context.Background(), 10, models.IssueStatusResolved)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestUpdateIssueRejections(t *testing.T) {
	svc, _, _ := newScanFixture(&fakeEngine{})

	_, err := svc.UpdateIssue(context.Background(), 10, 1, models.IssueUpdateRequest{Status: "fixed"})
	assert.ErrorIs(t, err, service.ErrInvalidIssueStatus)

	_, err = svc.UpdateIssue(context.Background(), 10, 404, models.IssueUpdateRequest{Status: models.IssueStatusResolved})
	assert.ErrorIs(t, err, storage.ErrIssueNotFound)

	_, err = svc.UpdateIssue(context.Background(), 99, 1, models.IssueUpdateRequest{Status: models.IssueStatusResolved})
	assert.ErrorIs(t, err, storage.ErrIssueNotFound)
}

func TestLatestScan(t *testing.T) {
	svc, _, scans := newScanFixture(&fakeEngine{})
	now := time.Now()
	scans.scans = []models.Scan{
		{ID: 1, WebsiteID: 1, Status: models.ScanStatusCompleted, ScanTime: now.Add(-time.Hour)},
		{ID: 2, WebsiteID: 1, Status: models.ScanStatusFailed, ScanTime: now},
	}

	// A failed run is still the latest result.
	latest, err := svc.LatestScan(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ID)
	assert.Equal(t, models.ScanStatusFailed, latest.Status)

	_, err = svc.LatestScan(context.Background(), 99, 1)
	assert.ErrorIs(t, err, storage.ErrWebsiteNotFound)
}

func TestLatestScanNoScans(t *testing.T) {
	svc, _, _ := newScanFixture(&fakeEngine{})

	_, err := svc.LatestScan(context.Background(), 10, 1)
	assert.ErrorIs(t, err, storage.ErrScanNotFound)
}

func TestSummary(t *testing.T) {
	svc, websites, scans := newScanFixture(&fakeEngine{})
	now := time.Now()

	websites.websites[2] = models.Website{ID: 2, UserID: 10, URL: "https://two.example.com", IsActive: true}
	websites.websites[3] = models.Website{ID: 3, UserID: 10, URL: "https://three.example.com", IsActive: true}
	scans.latest = map[int64]models.Scan{
		1: {WebsiteID: 1, TotalIssues: 3, HighIssues: 2, MediumIssues: 1, ScanTime: now.Add(-time.Hour)},
		2: {WebsiteID: 2, TotalIssues: 1, LowIssues: 1, ScanTime: now},
	}

	summary, err := svc.Summary(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalWebsites)
	assert.Equal(t, 1, summary.SecureWebsites)
	assert.Equal(t, 4, summary.TotalIssues)
	assert.Equal(t, 2, summary.HighIssues)
	assert.Equal(t, 1, summary.MediumIssues)
	assert.Equal(t, 1, summary.LowIssues)
	assert.InDelta(t, 50.0, summary.SecurityScore, 0.01)
	require.NotNil(t, summary.LastScanTime)
	assert.WithinDuration(t, now, *summary.LastScanTime, time.Second)
}

func TestSummaryEmpty(t *testing.T) {
	svc, websites, _ := newScanFixture(&fakeEngine{})
	websites.websites = map[int64]models.Website{}

	summary, err := svc.Summary(context.Background(), 10)
	require.NoError(t, err)

	assert.Zero(t, summary.TotalWebsites)
	assert.Zero(t, summary.SecurityScore)
	assert.Nil(t, summary.LastScanTime)
}
