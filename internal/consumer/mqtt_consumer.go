package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/metrics"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/mqtt"
)

// MQTTConsumer MQTT 遥测消费者
// 网关把遥测发布到 sentinel/<machine_id>/telemetry，引擎实时评分
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqtt.Client
	poll       *PollConsumer // 复用分发路径（持久化/缓存/流/告警）
	logger     *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	poll *PollConsumer,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		poll:       poll,
		logger:     logger,
	}
}

// Start 订阅遥测主题
func (c *MQTTConsumer) Start(ctx context.Context, scorer Scorer) error {
	topic := c.config.Topics.Telemetry
	err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, func(msgTopic string, payload []byte) error {
		return c.handleMessage(ctx, msgTopic, payload, scorer)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe telemetry topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
	)
	return nil
}

// handleMessage 处理一条遥测消息
func (c *MQTTConsumer) handleMessage(ctx context.Context, topic string, payload []byte, scorer Scorer) error {
	machineID, err := machineIDFromTopic(topic)
	if err != nil {
		return err
	}

	var sample models.TelemetrySample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return &models.SchemaError{Field: "payload", Reason: err.Error()}
	}

	if !c.poll.markSeen(machineID, sample.Timestamp) {
		// 轮询路径已经评过这条样本
		return nil
	}

	metrics.SamplesIngested.WithLabelValues("mqtt").Inc()

	return c.poll.ProcessSample(ctx, machineID, sample, scorer)
}

// machineIDFromTopic 从 "sentinel/<machine_id>/telemetry" 提取机台 ID
func machineIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("unexpected telemetry topic: %s", topic)
	}
	return parts[1], nil
}
