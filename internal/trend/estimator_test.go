package trend

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

func newTestEstimator(capacity, minSamples int) *Estimator {
	return NewEstimator(capacity, minSamples, zap.NewNop())
}

func sampleAt(base time.Time, offset time.Duration, pressure float64) models.TelemetrySample {
	return models.TelemetrySample{
		Timestamp:    base.Add(offset),
		Pressure:     pressure,
		Temp:         850,
		ScanSpeed:    10,
		QuenchFlow:   120,
		MachineState: models.StateQuench,
	}
}

func TestUpdate_InsufficientSamples(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	// 窗口样本数 < 2 时，速度与置信度必须精确为 0
	est, err := e.Update("furnace-1", sampleAt(base, 0, 3.5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Velocity)
	assert.Equal(t, 0.0, est.Confidence)
}

func TestUpdate_ConstantPressure(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	var est models.DriftEstimate
	var err error
	for i := 0; i < 10; i++ {
		est, err = e.Update("furnace-1", sampleAt(base, time.Duration(i)*3*time.Second, 3.5))
		require.NoError(t, err)
	}

	// 压力恒定：速度 0、置信度 0，不允许出现除零或 NaN
	assert.Equal(t, 0.0, est.Velocity)
	assert.Equal(t, 0.0, est.Confidence)
}

func TestUpdate_ExactLinearTrend(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	// 精确线性下降：每分钟 -0.06 Bar
	var est models.DriftEstimate
	var err error
	for i := 0; i < 20; i++ {
		offset := time.Duration(i) * 10 * time.Second
		pressure := 3.5 - 0.06*offset.Minutes()
		est, err = e.Update("furnace-1", sampleAt(base, offset, pressure))
		require.NoError(t, err)
	}

	assert.InDelta(t, -0.06, est.Velocity, 1e-9)
	assert.InDelta(t, 1.0, est.Confidence, 1e-9)
}

func TestUpdate_IrregularSamplingStillUnitCorrect(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	// 不均匀采样间隔下，斜率仍按 值/分钟 计算
	offsets := []time.Duration{
		0, 7 * time.Second, 19 * time.Second, 61 * time.Second,
		90 * time.Second, 200 * time.Second,
	}
	var est models.DriftEstimate
	var err error
	for _, off := range offsets {
		pressure := 4.0 - 0.10*off.Minutes()
		est, err = e.Update("furnace-1", sampleAt(base, off, pressure))
		require.NoError(t, err)
	}

	assert.InDelta(t, -0.10, est.Velocity, 1e-9)
	assert.InDelta(t, 1.0, est.Confidence, 1e-9)
}

func TestUpdate_OutOfOrderRejected(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	_, err := e.Update("furnace-1", sampleAt(base, 10*time.Second, 3.5))
	require.NoError(t, err)

	// 时间戳相等：拒绝
	_, err = e.Update("furnace-1", sampleAt(base, 10*time.Second, 3.4))
	require.Error(t, err)
	var oooErr *models.OutOfOrderError
	require.ErrorAs(t, err, &oooErr)
	assert.Equal(t, "furnace-1", oooErr.MachineID)

	// 时间戳回退：拒绝，且窗口不变
	_, err = e.Update("furnace-1", sampleAt(base, 5*time.Second, 3.4))
	require.ErrorAs(t, err, &oooErr)
	assert.Equal(t, 1, e.WindowSize("furnace-1"))
}

func TestUpdate_WindowEviction(t *testing.T) {
	e := newTestEstimator(5, 2)
	base := time.Now()

	for i := 0; i < 12; i++ {
		_, err := e.Update("furnace-1", sampleAt(base, time.Duration(i)*time.Second, 3.5+float64(i)*0.01))
		require.NoError(t, err)
	}

	// 窗口大小不超过容量，最旧样本被淘汰
	assert.Equal(t, 5, e.WindowSize("furnace-1"))
}

func TestUpdate_EvictionKeepsRegressionOnRecentWindow(t *testing.T) {
	e := newTestEstimator(5, 2)
	base := time.Now()

	// 先填入平坦段，再进入精确线性下降段；窗口滚动后只剩下降段
	var est models.DriftEstimate
	var err error
	for i := 0; i < 5; i++ {
		est, err = e.Update("furnace-1", sampleAt(base, time.Duration(i)*10*time.Second, 3.5))
		require.NoError(t, err)
	}
	for i := 5; i < 15; i++ {
		offset := time.Duration(i) * 10 * time.Second
		pressure := 3.5 - 0.06*(offset.Minutes()-50.0/60.0)
		est, err = e.Update("furnace-1", sampleAt(base, offset, pressure))
		require.NoError(t, err)
	}

	assert.InDelta(t, -0.06, est.Velocity, 1e-9)
	assert.InDelta(t, 1.0, est.Confidence, 1e-9)
}

func TestUpdate_IndependentStreams(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	for i := 0; i < 10; i++ {
		offset := time.Duration(i) * 10 * time.Second
		_, err := e.Update("furnace-1", sampleAt(base, offset, 3.5))
		require.NoError(t, err)
		_, err = e.Update("furnace-2", sampleAt(base, offset, 3.5-0.06*offset.Minutes()))
		require.NoError(t, err)
	}

	assert.Equal(t, 10, e.WindowSize("furnace-1"))
	assert.Equal(t, 10, e.WindowSize("furnace-2"))
}

func TestUpdate_ConcurrentStreams(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	// 不同机台并发更新不得相互污染窗口
	var wg sync.WaitGroup
	for m := 0; m < 8; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			machineID := fmt.Sprintf("furnace-%d", m)
			for i := 0; i < 50; i++ {
				offset := time.Duration(i) * time.Second
				_, err := e.Update(machineID, sampleAt(base, offset, 3.5+rand.Float64()*0.01))
				assert.NoError(t, err)
			}
		}(m)
	}
	wg.Wait()

	for m := 0; m < 8; m++ {
		assert.Equal(t, 20, e.WindowSize(fmt.Sprintf("furnace-%d", m)))
	}
}

func TestEvictIdle(t *testing.T) {
	e := newTestEstimator(20, 2)
	base := time.Now()

	_, err := e.Update("furnace-1", sampleAt(base, 0, 3.5))
	require.NoError(t, err)
	_, err = e.Update("furnace-2", sampleAt(base, 0, 3.5))
	require.NoError(t, err)

	// maxIdle 为 0 时所有窗口都超期
	evicted := e.EvictIdle(0)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, e.WindowSize("furnace-1"))
}
