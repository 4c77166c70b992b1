// Package fusion 实现风险融合与根因标注
//
// 单一分类器的概率输出不足以判定健康状态：训练数据的标签分布偏移
// 会让模型低估缓慢、低幅度的趋势信号。融合引擎在 ML 概率之上
// 叠加一层基于漂移速度的规则梯度：
//
//   - 基础分取各分类器故障概率的最大值（任何一个模型的确定告警
//     都不能被另一个模型的犹豫稀释）
//   - 漂移速度落入梯度表的某一带时，对分数施加只升不降的下限
//     （"高漂移即高风险"，与瞬时读数无关）
//   - 漂移置信度（R²）过低时不施加下限：低置信度意味着回归拟合
//     差，斜率不可信，不能据此抬升风险
package fusion

import (
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// driftBand 漂移梯度表中的一带
// 速度从 from 向 to 递减时，下限从 floorStart 线性升至 floorEnd
type driftBand struct {
	from       float64 // 带上边界（速度较大一侧，含）
	to         float64 // 带下边界（速度较小一侧）
	floorStart float64
	floorEnd   float64
}

// Engine 风险融合引擎（纯函数，调用之间不保留状态）
type Engine struct {
	safe          float64 // 高于该速度不施加下限
	bands         []driftBand
	optimalMax    float64
	criticalMin   float64
	confidenceMin float64

	activeStates         map[models.MachineState]struct{}
	operatingPressureMin float64
}

// NewEngine 根据配置构建融合引擎
// 梯度表为显式数据表（而非嵌套条件），断点可独立调参与测试
func NewEngine(cfg *config.Config) *Engine {
	f := cfg.Fusion

	// 最顶带：速度越过 DriftCritical 后，下限在再一个 |DriftCritical|
	// 宽度内升到 1.0，之后封顶
	top := 2 * f.DriftCritical

	active := make(map[models.MachineState]struct{}, len(f.ActiveStates))
	for _, s := range f.ActiveStates {
		active[models.MachineState(s)] = struct{}{}
	}

	return &Engine{
		safe: f.DriftSafe,
		bands: []driftBand{
			{from: f.DriftSafe, to: f.DriftWarning, floorStart: f.FloorWarnMin, floorEnd: f.FloorWarnMax},
			{from: f.DriftWarning, to: f.DriftCritical, floorStart: f.FloorWarnMax, floorEnd: f.FloorCritMax},
			{from: f.DriftCritical, to: top, floorStart: f.FloorCritMax, floorEnd: 1.0},
		},
		optimalMax:           f.OptimalMax,
		criticalMin:          f.CriticalMin,
		confidenceMin:        cfg.Spec.ConfidenceMin,
		activeStates:         active,
		operatingPressureMin: f.OperatingPressureMin,
	}
}

// Fuse 融合分类器意见与漂移信号，返回最终风险分与状态
//
// 零个意见返回 NoModelError：没有模型时不允许产生裁决。
// 下限覆盖只会抬高分数（score = max(base, floor)），从不压低；
// 漂移置信度低于阈值时不施加下限（不可信的斜率不得抬升风险）
func (e *Engine) Fuse(opinions []models.ClassifierOpinion, est models.DriftEstimate) (float64, models.Status, error) {
	if len(opinions) == 0 {
		return 0, "", &models.NoModelError{}
	}

	// 基础分：最大故障概率
	var base float64
	for _, op := range opinions {
		if op.FailureProbability > base {
			base = op.FailureProbability
		}
	}

	score := base
	if est.Confidence >= e.confidenceMin {
		if floor := e.driftFloor(est.Velocity); floor > score {
			score = floor
		}
	}
	if score > 1 {
		score = 1
	} else if score < 0 {
		score = 0
	}

	return score, e.statusFor(score), nil
}

// DriftFloor 暴露梯度表下限（供测试与诊断）
func (e *Engine) DriftFloor(velocity float64) float64 {
	return e.driftFloor(velocity)
}

// driftFloor 按梯度表计算漂移下限
func (e *Engine) driftFloor(velocity float64) float64 {
	if velocity > e.safe {
		return 0
	}

	for _, b := range e.bands {
		if velocity >= b.to {
			frac := (b.from - velocity) / (b.from - b.to)
			return b.floorStart + frac*(b.floorEnd-b.floorStart)
		}
	}

	// 低于最顶带下边界：封顶
	return e.bands[len(e.bands)-1].floorEnd
}

// statusFor 按固定阈值把风险分映射到状态
func (e *Engine) statusFor(score float64) models.Status {
	switch {
	case score < e.optimalMax:
		return models.StatusOptimal
	case score < e.criticalMin:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// IsOperating 判断机台是否处于可诊断的运行状态
//
// 状态标签在配置的运行状态集合内视为运行；标签不可信时用压力兜底
// （压力明显高于怠置水平说明机台实际在动）。非运行机台的裁决一律
// STANDBY，优先级高于任何计算出的分数
func (e *Engine) IsOperating(state models.MachineState, pressure float64) bool {
	if _, ok := e.activeStates[state]; ok {
		return true
	}
	return pressure >= e.operatingPressureMin
}
