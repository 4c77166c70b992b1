package models

import (
	"fmt"
	"time"
)

// SchemaError 输入数据不符合要求（缺字段 / 非数值）
// 该次调用直接失败，不产生任何兜底评分
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: field %q %s", e.Field, e.Reason)
}

// OutOfOrderError 同一数据流出现非单调递增的时间戳
// 斜率计算要求严格有序，该样本被拒绝，由上游决定丢弃或重排
type OutOfOrderError struct {
	MachineID string
	Timestamp time.Time
	LastSeen  time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order sample for machine %s: timestamp %s <= last seen %s",
		e.MachineID, e.Timestamp.Format(time.RFC3339Nano), e.LastSeen.Format(time.RFC3339Nano))
}

// ModelUnavailableError 单个分类器模型加载失败（降级运行告警）
type ModelUnavailableError struct {
	ModelID string
	Path    string
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable (path %s): %v", e.ModelID, e.Path, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// NoModelError 没有任何可用分类器，无法产生裁决
// 绝不允许返回固定的默认评分
type NoModelError struct{}

func (e *NoModelError) Error() string {
	return "no classifier model available, verdicts cannot be produced"
}
