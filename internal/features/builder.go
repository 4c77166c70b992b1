// Package features 负责构造分类器消费的特征向量
//
// 字段顺序是与模型工件之间的跨组件契约（models.FeatureOrder），
// 加载器与本包都以该顺序为准，顺序不一致的模型会在启动时被拒绝。
package features

import (
	"math"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// Builder 特征向量构造器（纯函数，无状态）
type Builder struct {
	driftDeadband float64
}

// NewBuilder 创建特征向量构造器
// driftDeadband: 漂移死区，|v| 低于该值视为传感器抖动，置 0 后再入模
func NewBuilder(driftDeadband float64) *Builder {
	return &Builder{driftDeadband: driftDeadband}
}

// Build 组装特征向量
// 任何字段非有限数值（NaN/Inf）或机台状态缺失都返回 SchemaError，
// 不产生兜底特征
func (b *Builder) Build(sample models.TelemetrySample, est models.DriftEstimate) (models.FeatureVector, error) {
	if err := Validate(sample); err != nil {
		return models.FeatureVector{}, err
	}
	if !isFinite(est.Velocity) {
		return models.FeatureVector{}, &models.SchemaError{Field: "drift_velocity", Reason: "is not a finite number"}
	}
	if !isFinite(est.Confidence) {
		return models.FeatureVector{}, &models.SchemaError{Field: "confidence_r2", Reason: "is not a finite number"}
	}

	velocity := est.Velocity
	if math.Abs(velocity) < b.driftDeadband {
		// 死区内的微小漂移按 0 处理（噪声过滤）
		velocity = 0
	}

	return models.FeatureVector{
		Pressure:      sample.Pressure,
		DriftVelocity: velocity,
		ConfidenceR2:  est.Confidence,
		PartTemp:      sample.Temp,
		ScanSpeed:     sample.ScanSpeed,
		QuenchFlow:    sample.QuenchFlow,
	}, nil
}

// Validate 校验遥测样本的必填字段
// 在样本进入趋势估计器之前调用，尽早失败
func Validate(sample models.TelemetrySample) error {
	if sample.Timestamp.IsZero() {
		return &models.SchemaError{Field: "timestamp", Reason: "is missing"}
	}
	if !isFinite(sample.Pressure) {
		return &models.SchemaError{Field: "pressure", Reason: "is not a finite number"}
	}
	if !isFinite(sample.Temp) {
		return &models.SchemaError{Field: "temp", Reason: "is not a finite number"}
	}
	if !isFinite(sample.ScanSpeed) {
		return &models.SchemaError{Field: "scan_speed", Reason: "is not a finite number"}
	}
	if !isFinite(sample.QuenchFlow) {
		return &models.SchemaError{Field: "quench_flow", Reason: "is not a finite number"}
	}
	if sample.MachineState == "" {
		return &models.SchemaError{Field: "machine_state", Reason: "is missing"}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
