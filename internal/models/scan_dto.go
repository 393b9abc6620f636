package models

import "time"

type WebsiteCreateRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type WebsiteUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type ScanCreateRequest struct {
	WebsiteID int64  `json:"website_id"`
	ScanType  string `json:"scan_type"`
}

type IssueUpdateRequest struct {
	Status string `json:"status"`
}

type SecuritySummary struct {
	TotalWebsites  int        `json:"total_websites"`
	SecureWebsites int        `json:"secure_websites"`
	SecurityScore  float64    `json:"security_score"`
	TotalIssues    int        `json:"total_issues"`
	HighIssues     int        `json:"high_issues"`
	MediumIssues   int        `json:"medium_issues"`
	LowIssues      int        `json:"low_issues"`
	LastScanTime   *time.Time `json:"last_scan_time,omitempty"`
}

// LandingPageData is the public showcase payload. It is served without
// authentication and is exempt from the client's refresh-retry path.
type LandingPageData struct {
	LastUpdated      time.Time       `json:"last_updated"`
	Summary          SecuritySummary `json:"summary"`
	SecurityFeatures map[string]bool `json:"security_features"`
}
