package fusion

import (
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// Annotator 根因标注器
//
// 确定性的规则表，按固定优先级求值，第一条命中的规则胜出。
// 这张表（而不是分类器）承担可解释性：规则阈值与融合引擎共用同一
// 份配置，二者必须保持一致
type Annotator struct {
	rules []rule
}

type rule struct {
	cause models.RootCause
	match func(vec models.FeatureVector, status models.Status) bool
}

// NewAnnotator 根据工厂规格范围构建根因规则表
func NewAnnotator(cfg *config.Config) *Annotator {
	spec := cfg.Spec

	return &Annotator{
		rules: []rule{
			{
				// 淬火流量出规格
				cause: models.CauseFlowFailure,
				match: func(vec models.FeatureVector, _ models.Status) bool {
					return vec.QuenchFlow < spec.FlowMin || vec.QuenchFlow > spec.FlowMax
				},
			},
			{
				// 快速负漂移且回归可信：机械性早期漂移（液压泄漏等）
				cause: models.CauseEarlyDrift,
				match: func(vec models.FeatureVector, _ models.Status) bool {
					return vec.DriftVelocity < spec.DriftAlert && vec.ConfidenceR2 > spec.ConfidenceMin
				},
			},
			{
				// 负斜率存在但拟合差：明确降级为疑似噪声，不升级
				cause: models.CauseNoise,
				match: func(vec models.FeatureVector, _ models.Status) bool {
					return vec.DriftVelocity < spec.DriftAlert && vec.ConfidenceR2 <= spec.ConfidenceMin
				},
			},
			{
				// 压力正常但温度/速度组合出规格：工艺参数错配
				cause: models.CauseContext,
				match: func(vec models.FeatureVector, _ models.Status) bool {
					pressureOK := vec.Pressure >= spec.PressureMin && vec.Pressure <= spec.PressureMax
					tempBad := vec.PartTemp < spec.TempMin || vec.PartTemp > spec.TempMax
					speedBad := vec.ScanSpeed < spec.SpeedMin || vec.ScanSpeed > spec.SpeedMax
					return pressureOK && (tempBad || speedBad)
				},
			},
			{
				cause: models.CauseNone,
				match: func(_ models.FeatureVector, status models.Status) bool {
					return status == models.StatusOptimal
				},
			},
		},
	}
}

// Annotate 为一次裁决分配根因标签
// 任何规则都未命中时返回 UNSPECIFIED_ANOMALY 兜底，绝不静默省略
func (a *Annotator) Annotate(vec models.FeatureVector, status models.Status) models.RootCause {
	for _, r := range a.rules {
		if r.match(vec, status) {
			return r.cause
		}
	}
	return models.CauseUnspecified
}
