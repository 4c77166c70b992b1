package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/classifier"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/features"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/fusion"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/metrics"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/trend"
)

// Scorer 风险评分服务（评分管线的组装点）
//
// 管线：校验 → 趋势估计 → 运行状态检查 → 特征构造 → 集成打分 →
// 风险融合 → 根因标注 → 裁决。除趋势窗口外不保留任何调用间状态，
// 同一输入重放得到同一输出
type Scorer struct {
	config    *config.Config
	trend     *trend.Estimator
	builder   *features.Builder
	ensemble  *classifier.Ensemble
	fusion    *fusion.Engine
	annotator *fusion.Annotator
	logger    *zap.Logger
}

// NewScorer 创建风险评分服务
func NewScorer(cfg *config.Config, ensemble *classifier.Ensemble, logger *zap.Logger) *Scorer {
	return &Scorer{
		config:    cfg,
		trend:     trend.NewEstimator(cfg.Trend.WindowSize, cfg.Trend.MinSamples, logger),
		builder:   features.NewBuilder(cfg.Trend.DriftDeadband),
		ensemble:  ensemble,
		fusion:    fusion.NewEngine(cfg),
		annotator: fusion.NewAnnotator(cfg),
		logger:    logger,
	}
}

// Score 对一条遥测样本评分，返回不可变的风险裁决
//
// 非运行状态的机台不做分类器推理，直接返回 STANDBY 裁决
// （停机的机台无法有意义地诊断）；趋势窗口仍然更新，
// 保证漂移历史连续
func (s *Scorer) Score(machineID string, sample models.TelemetrySample) (*models.RiskVerdict, error) {
	start := time.Now()

	verdict, err := s.score(machineID, sample)
	if err != nil {
		metrics.ScoringErrors.WithLabelValues(classifyError(err)).Inc()
		return nil, err
	}

	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.VerdictsTotal.WithLabelValues(string(verdict.Status)).Inc()

	s.logger.Debug("Sample scored",
		zap.String("machine_id", machineID),
		zap.Float64("risk_score", verdict.RiskScore),
		zap.String("status", string(verdict.Status)),
		zap.String("root_cause", string(verdict.RootCause)),
		zap.Float64("drift_velocity", verdict.DriftVelocity),
	)

	return verdict, nil
}

func (s *Scorer) score(machineID string, sample models.TelemetrySample) (*models.RiskVerdict, error) {
	// 尽早失败：坏样本不进入趋势窗口
	if err := features.Validate(sample); err != nil {
		return nil, err
	}
	sample.MachineState = models.NormalizeMachineState(string(sample.MachineState))

	est, err := s.trend.Update(machineID, sample)
	if err != nil {
		return nil, err
	}

	// STANDBY 优先于任何计算出的分数
	if !s.fusion.IsOperating(sample.MachineState, sample.Pressure) {
		return s.newVerdict(machineID, sample, est, 0, models.StatusStandby, models.CauseNone, nil), nil
	}

	vec, err := s.builder.Build(sample, est)
	if err != nil {
		return nil, err
	}

	opinions, err := s.ensemble.Score(vec)
	if err != nil {
		return nil, err
	}

	score, status, err := s.fusion.Fuse(opinions, est)
	if err != nil {
		return nil, err
	}

	cause := s.annotator.Annotate(vec, status)

	return s.newVerdict(machineID, sample, est, score, status, cause, opinions), nil
}

// WindowSize 返回某机台趋势窗口内的样本数（诊断用）
func (s *Scorer) WindowSize(machineID string) int {
	return s.trend.WindowSize(machineID)
}

// EvictIdleStreams 回收空闲数据流的趋势窗口
func (s *Scorer) EvictIdleStreams() int {
	return s.trend.EvictIdle(time.Duration(s.config.Trend.StreamIdleTTL) * time.Second)
}

// ActiveStreams 返回当前持有趋势窗口的机台数
func (s *Scorer) ActiveStreams() int {
	return s.trend.Streams()
}

// ModelsLoaded 返回可用分类器数量
func (s *Scorer) ModelsLoaded() int {
	return s.ensemble.Loaded()
}

// Degraded 是否处于模型降级模式
func (s *Scorer) Degraded() bool {
	return s.ensemble.Degraded()
}

func (s *Scorer) newVerdict(
	machineID string,
	sample models.TelemetrySample,
	est models.DriftEstimate,
	score float64,
	status models.Status,
	cause models.RootCause,
	opinions []models.ClassifierOpinion,
) *models.RiskVerdict {
	return &models.RiskVerdict{
		VerdictID:     uuid.New().String(),
		MachineID:     machineID,
		RiskScore:     score,
		Status:        status,
		RootCause:     cause,
		Opinions:      opinions,
		DriftVelocity: est.Velocity,
		Confidence:    est.Confidence,
		Timestamp:     sample.Timestamp,
		CreatedAt:     time.Now().UTC(),
	}
}

// classifyError 把评分错误映射到指标标签
func classifyError(err error) string {
	var schemaErr *models.SchemaError
	var outOfOrder *models.OutOfOrderError
	var noModel *models.NoModelError

	switch {
	case errors.As(err, &schemaErr):
		return metrics.ErrorTypeSchema
	case errors.As(err, &outOfOrder):
		return metrics.ErrorTypeOutOfOrder
	case errors.As(err, &noModel):
		return metrics.ErrorTypeNoModel
	default:
		return metrics.ErrorTypeInference
	}
}
