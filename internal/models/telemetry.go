package models

import (
	"strings"
	"time"
)

// MachineState 机台状态（来自 PLC 遥测，原始字符串可能含空白/小写）
type MachineState string

const (
	StateQuench    MachineState = "QUENCH"
	StateCompleted MachineState = "COMPLETED"
	StateRunning   MachineState = "RUNNING"
	StateHeating   MachineState = "HEATING"
	StateLoading   MachineState = "LOADING"
	StateUnloading MachineState = "UNLOADING"
	StateIdle      MachineState = "IDLE"
	StateStandby   MachineState = "STANDBY"
	StateDown      MachineState = "DOWN"
	StateBreakdown MachineState = "BREAKDOWN"
	StateUnknown   MachineState = "UNKNOWN"
)

// NormalizeMachineState 归一化机台状态（去空白、转大写）
func NormalizeMachineState(raw string) MachineState {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return StateUnknown
	}
	return MachineState(s)
}

// TelemetrySample 单条传感器遥测数据（由采集方产出，引擎只读引用）
type TelemetrySample struct {
	Timestamp    time.Time    `json:"timestamp"`
	Pressure     float64      `json:"pressure"`      // 液压压力（Bar）
	Temp         float64      `json:"temp"`          // 工件温度（C）
	ScanSpeed    float64      `json:"scan_speed"`    // 扫描速度
	QuenchFlow   float64      `json:"quench_flow"`   // 淬火流量（LPM）
	MachineState MachineState `json:"machine_state"` // 机台状态
}

// DriftEstimate 趋势估计结果（每条样本重算一次，不持久化）
// Velocity 单位为 值/分钟；Confidence 为回归的 R²，取值 [0,1]
// 窗口样本数不足时两者都为 0（"无漂移证据"，不是错误）
type DriftEstimate struct {
	Velocity   float64 `json:"velocity"`
	Confidence float64 `json:"confidence"`
}
