// Package monitoring turns batch summaries into webhook alerts.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/internal/discovery"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate      AlertType = "failure_rate"
	AlertLowYield         AlertType = "low_yield"
	AlertBatchInterrupted AlertType = "batch_interrupted"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a batch Summary against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitor config.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks a finished batch and returns any alerts. Rate checks need
// at least MinProcessed recorded organizations.
func (a *Alerter) Evaluate(sum discovery.Summary, runErr error) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if runErr != nil {
		alerts = append(alerts, Alert{
			Type:     AlertBatchInterrupted,
			Severity: "high",
			Message: fmt.Sprintf("Batch stopped after %d of %d organizations: %v",
				sum.Processed, sum.Total, runErr),
			Details: map[string]any{
				"processed": sum.Processed,
				"cancelled": sum.Cancelled,
				"total":     sum.Total,
			},
			Timestamp: now,
		})
	}

	if sum.Processed == 0 || sum.Processed < a.cfg.MinProcessed {
		return alerts
	}

	failRate := float64(sum.Failed) / float64(sum.Processed)
	if a.cfg.FailureRateThreshold > 0 && failRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf("Discovery failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
				failRate*100, a.cfg.FailureRateThreshold*100, sum.Failed, sum.Processed),
			Details: map[string]any{
				"failure_rate": failRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       sum.Failed,
				"processed":    sum.Processed,
			},
			Timestamp: now,
		})
	}

	foundRate := float64(sum.Found) / float64(sum.Processed)
	if a.cfg.MinFoundRate > 0 && foundRate < a.cfg.MinFoundRate {
		alerts = append(alerts, Alert{
			Type:     AlertLowYield,
			Severity: "medium",
			Message: fmt.Sprintf("Only %.1f%% of organizations yielded emails, below %.1f%% (%d / %d)",
				foundRate*100, a.cfg.MinFoundRate*100, sum.Found, sum.Processed),
			Details: map[string]any{
				"found_rate": foundRate,
				"threshold":  a.cfg.MinFoundRate,
				"by_method":  sum.ByMethod,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
