package models

import "time"

const (
	ScanTypeQuick = "quick"
	ScanTypeDeep  = "deep"

	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"

	ImpactHigh   = "HIGH"
	ImpactMedium = "MEDIUM"
	ImpactLow    = "LOW"

	IssueStatusOpen     = "open"
	IssueStatusResolved = "resolved"
	IssueStatusIgnored  = "ignored"
)

type Website struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	URL         string    `json:"url"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Scan struct {
	ID           int64     `json:"id"`
	WebsiteID    int64     `json:"website_id"`
	ScanType     string    `json:"scan_type"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TotalIssues  int       `json:"total_issues"`
	HighIssues   int       `json:"high_issues"`
	MediumIssues int       `json:"medium_issues"`
	LowIssues    int       `json:"low_issues"`
	ScanTime     time.Time `json:"scan_time"`
	CreatedAt    time.Time `json:"created_at"`
}

type Issue struct {
	ID          int64      `json:"id"`
	ScanID      int64      `json:"scan_id"`
	Impact      string     `json:"impact"`
	IssueType   string     `json:"issue_type"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ReportedAt  time.Time  `json:"reported_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
