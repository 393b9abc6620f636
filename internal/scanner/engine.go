// Package scanner talks to the external scan engine. The engine is a black
// box: it takes a target URL and returns a list of findings. Everything
// about how it scans (TLS probing, header checks, active scanning) lives on
// the other side of this HTTP boundary.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shieldops/backend/internal/util"
)

type Finding struct {
	Impact      string `json:"impact"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type scanRequest struct {
	URL      string `json:"url"`
	ScanType string `json:"scan_type"`
}

type scanResponse struct {
	Issues []Finding `json:"issues"`
}

type EngineClient struct {
	client    *http.Client
	engineURL string
}

func NewEngineClient(cfg *util.ScannerConfig) *EngineClient {
	return &EngineClient{
		client:    &http.Client{Timeout: cfg.Timeout},
		engineURL: cfg.EngineURL,
	}
}

func (c *EngineClient) Scan(ctx context.Context, targetURL, scanType string) ([]Finding, error) {
	payload, err := json.Marshal(scanRequest{URL: targetURL, ScanType: scanType})
	if err != nil {
		return nil, fmt.Errorf("marshal scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.engineURL+"/scan", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan engine call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan engine returned status %d", resp.StatusCode)
	}

	var decoded scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	return decoded.Issues, nil
}
