package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const alertStatusThreshold = 300

// AlertService pushes a webhook notification when a completed scan reports
// HIGH-impact issues. Delivery is fire-and-forget.
type AlertService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewAlertService(log *zap.SugaredLogger, webhookURL string) *AlertService {
	return &AlertService{
		client:     &http.Client{},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *AlertService) NotifyHighRiskIssues(ctx context.Context, data map[string]interface{}) {
	// The request that triggered the alert finishes before delivery does;
	// detach from its cancellation.
	ctx = context.WithoutCancel(ctx)

	go func() {
		if s.webhookURL == "" {
			return
		}

		payload, err := json.Marshal(data)
		if err != nil {
			s.log.Errorw("failed to marshal alert payload", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create alert request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send alert", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= alertStatusThreshold {
			s.log.Warnw("alert webhook returned non-2xx status", "status", resp.StatusCode)
		}
	}()
}
