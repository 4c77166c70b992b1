package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/redisutil"
)

// CacheManager Redis 缓存管理器（遥测读取 + 裁决缓存/发布）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetLatestTelemetry 从 Redis 读取机台的最新遥测
// 采集网关写入 "sentinel:machine:<id>:telemetry"，引擎只读
func (c *CacheManager) GetLatestTelemetry(ctx context.Context, machineID string) (*models.TelemetrySample, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.TelemetryKeyPrefix,
		machineID,
		c.config.Cache.TelemetrySuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get telemetry cache: %w", err)
	}

	var sample models.TelemetrySample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return nil, &models.SchemaError{Field: "telemetry", Reason: err.Error()}
	}

	return &sample, nil
}

// UpdateVerdictCache 更新裁决缓存（设置 TTL）
func (c *CacheManager) UpdateVerdictCache(ctx context.Context, verdict *models.RiskVerdict) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.VerdictKeyPrefix,
		verdict.MachineID,
		c.config.Cache.VerdictSuffix,
	)

	jsonData, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Cache.VerdictTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set verdict cache: %w", err)
	}

	c.logger.Debug("Updated verdict cache",
		zap.String("machine_id", verdict.MachineID),
		zap.String("key", key),
		zap.String("status", string(verdict.Status)),
	)

	return nil
}

// GetCachedVerdict 读取机台的缓存裁决，不存在时返回 nil
func (c *CacheManager) GetCachedVerdict(ctx context.Context, machineID string) (*models.RiskVerdict, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.VerdictKeyPrefix,
		machineID,
		c.config.Cache.VerdictSuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get verdict cache: %w", err)
	}

	var verdict models.RiskVerdict
	if err := json.Unmarshal([]byte(val), &verdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}

	return &verdict, nil
}

// PublishVerdict 把裁决发布到 Redis Stream，供下游看板消费
func (c *CacheManager) PublishVerdict(ctx context.Context, verdict *models.RiskVerdict) error {
	_, err := redisutil.PublishJSONToStream(ctx, c.redisClient, c.config.Cache.VerdictStream, verdict)
	if err != nil {
		return fmt.Errorf("failed to publish verdict to stream: %w", err)
	}
	return nil
}
