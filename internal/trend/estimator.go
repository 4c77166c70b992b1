// Package trend 提供基于滚动窗口线性回归的漂移估计
//
// 每个机台（数据流）维护一个固定容量的环形缓冲区，按时间戳严格递增存放
// 最近 N 条遥测样本。每收到一条新样本，就对窗口内的 压力 ~ 经过分钟数
// 做一次最小二乘回归：斜率即漂移速度（Bar/分钟），R² 即置信度。
//
// 时间轴使用样本的绝对时间戳（分钟），而不是样本序号，
// 采样间隔不均匀时速度单位仍然正确。
package trend

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

type point struct {
	t        time.Time
	pressure float64
}

// window 单个数据流的环形缓冲区
// samples 为预分配的定长数组，head 指向最旧样本
type window struct {
	mu       sync.Mutex
	samples  []point
	head     int
	count    int
	lastSeen time.Time // 最近一次写入的墙钟时间，用于空闲回收
}

// last 返回窗口内最新样本（调用方须持有 w.mu）
func (w *window) last() point {
	return w.samples[(w.head+w.count-1)%len(w.samples)]
}

// push 追加样本，窗口满时覆盖最旧样本（调用方须持有 w.mu）
func (w *window) push(p point) {
	if w.count == len(w.samples) {
		w.samples[w.head] = p
		w.head = (w.head + 1) % len(w.samples)
	} else {
		w.samples[(w.head+w.count)%len(w.samples)] = p
		w.count++
	}
}

// Estimator 漂移估计器（按机台维护滚动窗口）
type Estimator struct {
	capacity   int
	minSamples int
	logger     *zap.Logger

	mu      sync.RWMutex
	windows map[string]*window
}

// NewEstimator 创建漂移估计器
// capacity: 窗口容量（样本数）；minSamples: 置信度有效的最小样本数
func NewEstimator(capacity, minSamples int, logger *zap.Logger) *Estimator {
	if capacity < 2 {
		capacity = 2
	}
	if minSamples < 2 {
		minSamples = 2
	}
	return &Estimator{
		capacity:   capacity,
		minSamples: minSamples,
		logger:     logger,
		windows:    make(map[string]*window),
	}
}

// Update 追加一条样本并重算该机台的漂移估计
//
// 同一机台的时间戳必须严格递增，否则返回 OutOfOrderError（样本被拒绝，
// 窗口不变）。不同机台的窗口相互独立，并发调用互不阻塞；
// 同一机台的更新由窗口级互斥锁串行化。
func (e *Estimator) Update(machineID string, sample models.TelemetrySample) (models.DriftEstimate, error) {
	w := e.getOrCreate(machineID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count > 0 {
		last := w.last()
		if !sample.Timestamp.After(last.t) {
			return models.DriftEstimate{}, &models.OutOfOrderError{
				MachineID: machineID,
				Timestamp: sample.Timestamp,
				LastSeen:  last.t,
			}
		}
	}

	w.push(point{t: sample.Timestamp, pressure: sample.Pressure})
	w.lastSeen = time.Now()

	return e.estimate(w), nil
}

// WindowSize 返回某机台当前窗口内的样本数（不存在返回 0）
func (e *Estimator) WindowSize(machineID string) int {
	e.mu.RLock()
	w, ok := e.windows[machineID]
	e.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Streams 返回当前活跃的数据流数量
func (e *Estimator) Streams() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.windows)
}

// EvictIdle 回收超过 maxIdle 未更新的数据流，返回回收数量
// 长期运行时由轮询方定期调用，避免下线机台的窗口常驻内存
func (e *Estimator) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for id, w := range e.windows {
		w.mu.Lock()
		idle := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(e.windows, id)
			evicted++
		}
	}

	if evicted > 0 {
		e.logger.Info("Evicted idle trend windows",
			zap.Int("evicted", evicted),
		)
	}
	return evicted
}

// getOrCreate 获取或创建机台窗口
func (e *Estimator) getOrCreate(machineID string) *window {
	e.mu.RLock()
	w, ok := e.windows[machineID]
	e.mu.RUnlock()
	if ok {
		return w
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok = e.windows[machineID]; ok {
		return w
	}
	w = &window{samples: make([]point, e.capacity)}
	e.windows[machineID] = w
	return w
}

// estimate 对窗口内容做最小二乘回归（调用方须持有 w.mu）
//
// 样本数不足 minSamples 时返回 (0, 0)：数据不足报告为"无漂移证据"，
// 不是错误，也不能与真实的平稳趋势混淆（平稳趋势置信度同样为 0）。
func (e *Estimator) estimate(w *window) models.DriftEstimate {
	if w.count < e.minSamples {
		return models.DriftEstimate{}
	}

	n := float64(w.count)
	t0 := w.samples[w.head].t

	var sx, sy, sxx, syy, sxy float64
	for i := 0; i < w.count; i++ {
		p := w.samples[(w.head+i)%len(w.samples)]
		x := p.t.Sub(t0).Minutes()
		y := p.pressure
		sx += x
		sy += y
		sxx += x * x
		syy += y * y
		sxy += x * y
	}

	// SS_tot 为 0（压力恒定）时速度与置信度都定义为 0，避免除零
	ssTot := syy - sy*sy/n
	if ssTot <= 0 {
		return models.DriftEstimate{}
	}

	// OLS 斜率：(n*Sxy - Sx*Sy) / (n*Sxx - Sx²)
	denom := n*sxx - sx*sx
	if denom == 0 {
		return models.DriftEstimate{}
	}
	slope := (n*sxy - sx*sy) / denom

	intercept := (sy - slope*sx) / n
	var ssRes float64
	for i := 0; i < w.count; i++ {
		p := w.samples[(w.head+i)%len(w.samples)]
		x := p.t.Sub(t0).Minutes()
		resid := p.pressure - (intercept + slope*x)
		ssRes += resid * resid
	}

	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	} else if r2 > 1 {
		r2 = 1
	}
	if math.IsNaN(r2) {
		r2 = 0
	}

	return models.DriftEstimate{Velocity: slope, Confidence: r2}
}
