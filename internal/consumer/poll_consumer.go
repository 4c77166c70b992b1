package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/metrics"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/repository"
)

// Scorer 风险评分接口（由 service 层实现）
type Scorer interface {
	Score(machineID string, sample models.TelemetrySample) (*models.RiskVerdict, error)
}

// Notifier 告警通知接口（CRITICAL_FAILURE 裁决触发）
type Notifier interface {
	NotifyCritical(ctx context.Context, verdict *models.RiskVerdict) error
}

// PollConsumer 轮询消费者（定期扫描活跃机台的遥测缓存）
type PollConsumer struct {
	config      *config.Config
	cache       *CacheManager
	machineRepo *repository.MachineRepository
	verdictRepo *repository.VerdictRepository
	notifier    Notifier // 可为 nil（通知关闭时）
	logger      *zap.Logger

	// 每机台最近已评分的样本时间戳，重复样本不重复评分
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewPollConsumer 创建轮询消费者
func NewPollConsumer(
	cfg *config.Config,
	cache *CacheManager,
	machineRepo *repository.MachineRepository,
	verdictRepo *repository.VerdictRepository,
	notifier Notifier,
	logger *zap.Logger,
) *PollConsumer {
	return &PollConsumer{
		config:      cfg,
		cache:       cache,
		machineRepo: machineRepo,
		verdictRepo: verdictRepo,
		notifier:    notifier,
		logger:      logger,
		lastSeen:    make(map[string]time.Time),
	}
}

// Start 启动消费者（轮询模式），ctx 取消时退出
func (c *PollConsumer) Start(ctx context.Context, scorer Scorer) error {
	c.logger.Info("Poll consumer started",
		zap.Int("poll_interval", c.config.Poll.Interval),
		zap.Int("batch_size", c.config.Poll.BatchSize),
	)

	ticker := time.NewTicker(time.Duration(c.config.Poll.Interval) * time.Second)
	defer ticker.Stop()

	// 立即执行一次
	if err := c.evaluateAllMachines(ctx, scorer); err != nil {
		c.logger.Error("Failed to evaluate machines on startup",
			zap.Error(err),
		)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Poll consumer stopped")
			return nil
		case <-ticker.C:
			if err := c.evaluateAllMachines(ctx, scorer); err != nil {
				c.logger.Error("Failed to evaluate machines",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// evaluateAllMachines 评估所有启用监控的机台
func (c *PollConsumer) evaluateAllMachines(ctx context.Context, scorer Scorer) error {
	machines, err := c.machineRepo.GetActiveMachines(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active machines: %w", err)
	}

	c.logger.Debug("Evaluating machines",
		zap.Int("machine_count", len(machines)),
	)

	batchSize := c.config.Poll.BatchSize
	for i := 0; i < len(machines); i += batchSize {
		end := i + batchSize
		if end > len(machines) {
			end = len(machines)
		}

		batch := machines[i:end]
		if err := c.evaluateBatch(ctx, batch, scorer); err != nil {
			c.logger.Error("Failed to evaluate batch",
				zap.Int("batch_start", i),
				zap.Int("batch_end", end),
				zap.Error(err),
			)
			// 继续处理下一批，不中断
		}
	}

	return nil
}

// evaluateBatch 批量评估机台
func (c *PollConsumer) evaluateBatch(ctx context.Context, machines []models.Machine, scorer Scorer) error {
	for _, machine := range machines {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sample, err := c.cache.GetLatestTelemetry(ctx, machine.MachineID)
		if err != nil {
			c.logger.Warn("Failed to read telemetry cache",
				zap.String("machine_id", machine.MachineID),
				zap.Error(err),
			)
			continue
		}
		if sample == nil {
			// 机台还没有遥测数据，跳过
			continue
		}
		if !c.markSeen(machine.MachineID, sample.Timestamp) {
			// 同一条样本已评分过，等下一条
			continue
		}

		metrics.SamplesIngested.WithLabelValues("poll").Inc()

		if err := c.ProcessSample(ctx, machine.MachineID, *sample, scorer); err != nil {
			c.logger.Error("Failed to score machine",
				zap.String("machine_id", machine.MachineID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}

// ProcessSample 评分并分发一条遥测样本（持久化 → 缓存 → 流发布 → 告警）
// MQTT 消费者复用同一条分发路径
func (c *PollConsumer) ProcessSample(ctx context.Context, machineID string, sample models.TelemetrySample, scorer Scorer) error {
	verdict, err := scorer.Score(machineID, sample)
	if err != nil {
		return fmt.Errorf("failed to score sample: %w", err)
	}

	if err := c.verdictRepo.CreateVerdict(ctx, verdict); err != nil {
		return fmt.Errorf("failed to persist verdict: %w", err)
	}

	if err := c.cache.UpdateVerdictCache(ctx, verdict); err != nil {
		c.logger.Warn("Failed to update verdict cache",
			zap.String("machine_id", machineID),
			zap.Error(err),
		)
	}

	if err := c.cache.PublishVerdict(ctx, verdict); err != nil {
		c.logger.Warn("Failed to publish verdict to stream",
			zap.String("machine_id", machineID),
			zap.Error(err),
		)
	}

	if verdict.Status == models.StatusCritical {
		metrics.CriticalAlerts.Inc()
		c.logger.Warn("Critical failure verdict",
			zap.String("machine_id", machineID),
			zap.Float64("risk_score", verdict.RiskScore),
			zap.String("root_cause", string(verdict.RootCause)),
		)
		if c.notifier != nil {
			if err := c.notifier.NotifyCritical(ctx, verdict); err != nil {
				c.logger.Error("Failed to send critical notification",
					zap.String("machine_id", machineID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// markSeen 记录样本时间戳；该时间戳已评分过时返回 false
func (c *PollConsumer) markSeen(machineID string, ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastSeen[machineID]; ok && !ts.After(last) {
		return false
	}
	c.lastSeen[machineID] = ts
	return true
}
