package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// CriticalAlert Webhook 告警负载
type CriticalAlert struct {
	VerdictID     string    `json:"verdict_id"`
	MachineID     string    `json:"machine_id"`
	RiskScore     float64   `json:"risk_score"`
	RootCause     string    `json:"root_cause"`
	DriftVelocity float64   `json:"drift_velocity"`
	Timestamp     time.Time `json:"timestamp"`
}

// WebhookNotifier 关键故障 Webhook 通知器
// 只在 CRITICAL_FAILURE 裁决时触发，维保平台据此开工单
type WebhookNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(cfg *config.Config, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(cfg.Notifier.WebhookURL).
		SetTimeout(time.Duration(cfg.Notifier.TimeoutSec) * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		logger:     logger,
	}
}

// NotifyCritical 推送一条关键故障告警
func (n *WebhookNotifier) NotifyCritical(ctx context.Context, verdict *models.RiskVerdict) error {
	alert := CriticalAlert{
		VerdictID:     verdict.VerdictID,
		MachineID:     verdict.MachineID,
		RiskScore:     verdict.RiskScore,
		RootCause:     string(verdict.RootCause),
		DriftVelocity: verdict.DriftVelocity,
		Timestamp:     verdict.Timestamp,
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to call alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Critical alert delivered",
		zap.String("machine_id", verdict.MachineID),
		zap.String("verdict_id", verdict.VerdictID),
		zap.Float64("risk_score", verdict.RiskScore),
	)

	return nil
}
