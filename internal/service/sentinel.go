package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/classifier"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/consumer"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/database"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/httpapi"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/metrics"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/mqtt"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/notifier"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/redisutil"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/repository"
)

// SentinelService 风险评分服务（整合各层）
type SentinelService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client // MQTT 关闭时为 nil
	logger      *zap.Logger

	// 各层组件
	scorer       *Scorer
	machineRepo  *repository.MachineRepository
	verdictRepo  *repository.VerdictRepository
	cacheManager *consumer.CacheManager
	pollConsumer *consumer.PollConsumer
	mqttConsumer *consumer.MQTTConsumer
	httpServer   *http.Server
}

// NewSentinelService 创建风险评分服务
func NewSentinelService(cfg *config.Config, logger *zap.Logger) (*SentinelService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisutil.NewRedisClient(&cfg.Redis)
	if err := redisutil.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 加载分类器模型（启动时一次，运行期冻结）
	ensemble, err := classifier.NewEnsemble(logger,
		classifier.ModelSource{Path: cfg.Models.PrimaryPath},
		classifier.ModelSource{Path: cfg.Models.SecondaryPath},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier models: %w", err)
	}

	// 4. 创建评分管线
	scorer := NewScorer(cfg, ensemble, logger)

	// 5. 创建 Repository 层
	machineRepo := repository.NewMachineRepository(db, logger)
	verdictRepo := repository.NewVerdictRepository(db, logger)

	// 6. 创建 Consumer 层
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)

	var hook consumer.Notifier
	if cfg.Notifier.Enabled {
		hook = notifier.NewWebhookNotifier(cfg, logger)
	}

	pollConsumer := consumer.NewPollConsumer(cfg, cacheManager, machineRepo, verdictRepo, hook, logger)

	// 7. MQTT 消费者（可选）
	var mqttClient *mqtt.Client
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect MQTT broker: %w", err)
		}
		mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, pollConsumer, logger)
	}

	// 8. HTTP API
	handler := httpapi.NewHandler(scorer, verdictRepo, cacheManager, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return &SentinelService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		logger:       logger,
		scorer:       scorer,
		machineRepo:  machineRepo,
		verdictRepo:  verdictRepo,
		cacheManager: cacheManager,
		pollConsumer: pollConsumer,
		mqttConsumer: mqttConsumer,
		httpServer:   httpServer,
	}, nil
}

// Start 启动服务，ctx 取消后返回
func (s *SentinelService) Start(ctx context.Context) error {
	s.logger.Info("Starting sentinel service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Int("models_loaded", s.scorer.ModelsLoaded()),
		zap.Bool("degraded", s.scorer.Degraded()),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
	)

	errChan := make(chan error, 2)

	// HTTP API
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	// MQTT 消费者（实时路径）
	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Start(ctx, s.scorer); err != nil {
			return fmt.Errorf("failed to start mqtt consumer: %w", err)
		}
	}

	// 空闲趋势窗口回收
	go s.evictIdleLoop(ctx)

	// 轮询消费者（兜底路径），阻塞到 ctx 取消
	go func() {
		errChan <- s.pollConsumer.Start(ctx, s.scorer)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// Stop 停止服务并释放连接
func (s *SentinelService) Stop() error {
	s.logger.Info("Stopping sentinel service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown http server",
			zap.Error(err),
		)
	}

	if s.mqttClient != nil {
		s.mqttClient.Close()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// evictIdleLoop 定期回收长时间无数据的趋势窗口
func (s *SentinelService) evictIdleLoop(ctx context.Context) {
	interval := time.Duration(s.config.Trend.StreamIdleTTL) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := s.scorer.EvictIdleStreams()
			metrics.ActiveStreams.Set(float64(s.scorer.ActiveStreams()))
			if evicted > 0 {
				s.logger.Info("Evicted idle trend streams",
					zap.Int("evicted", evicted),
				)
			}
		}
	}
}
