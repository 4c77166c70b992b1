package models

import (
	"time"
)

// FeatureOrder 特征向量的固定字段顺序
// 必须与分类器训练时的特征顺序完全一致（跨组件契约，由加载器校验）
var FeatureOrder = []string{
	"pressure",
	"drift_velocity",
	"confidence_r2",
	"part_temp",
	"scan_speed",
	"quench_flow",
}

// FeatureVector 固定顺序的特征向量（每次评分构造一次，用后即弃）
type FeatureVector struct {
	Pressure      float64 `json:"pressure"`
	DriftVelocity float64 `json:"drift_velocity"`
	ConfidenceR2  float64 `json:"confidence_r2"`
	PartTemp      float64 `json:"part_temp"`
	ScanSpeed     float64 `json:"scan_speed"`
	QuenchFlow    float64 `json:"quench_flow"`
}

// Values 按 FeatureOrder 返回特征值切片（供分类器打分）
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.Pressure,
		v.DriftVelocity,
		v.ConfidenceR2,
		v.PartTemp,
		v.ScanSpeed,
		v.QuenchFlow,
	}
}

// ClassifierOpinion 单个分类器对一次评分的意见
type ClassifierOpinion struct {
	ModelID            string  `json:"model_id"`
	FailureProbability float64 `json:"failure_probability"` // [0,1]
}

// Status 健康状态
type Status string

const (
	StatusOptimal  Status = "OPTIMAL"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL_FAILURE"
	StatusStandby  Status = "STANDBY"
)

// RootCause 根因标签（面向操作员的解释层）
type RootCause string

const (
	CauseNone        RootCause = "NONE"
	CauseFlowFailure RootCause = "FLOW_FAILURE"
	CauseEarlyDrift  RootCause = "EARLY_DRIFT"
	CauseNoise       RootCause = "NOISE_SUSPECTED"
	CauseContext     RootCause = "CONTEXT_FAILURE"
	CauseUnspecified RootCause = "UNSPECIFIED_ANOMALY"
)

// RiskVerdict 风险裁决（对应 risk_verdicts 表）
// 每次评分调用生成一条，生成后不可变，由调用方决定是否持久化
type RiskVerdict struct {
	VerdictID     string              `json:"verdict_id" db:"verdict_id"`
	MachineID     string              `json:"machine_id" db:"machine_id"`
	RiskScore     float64             `json:"risk_score" db:"risk_score"`
	Status        Status              `json:"status" db:"status"`
	RootCause     RootCause           `json:"root_cause" db:"root_cause"`
	Opinions      []ClassifierOpinion `json:"contributing_opinions" db:"opinions"` // JSONB
	DriftVelocity float64             `json:"drift_velocity" db:"drift_velocity"`
	Confidence    float64             `json:"confidence" db:"confidence"`
	Timestamp     time.Time           `json:"timestamp" db:"sample_timestamp"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}
