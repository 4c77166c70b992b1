package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

func nominalSample() models.TelemetrySample {
	return models.TelemetrySample{
		Timestamp:    time.Now(),
		Pressure:     3.5,
		Temp:         850,
		ScanSpeed:    10,
		QuenchFlow:   120,
		MachineState: models.StateQuench,
	}
}

func TestBuild_FieldOrderContract(t *testing.T) {
	b := NewBuilder(0.005)

	vec, err := b.Build(nominalSample(), models.DriftEstimate{Velocity: -0.06, Confidence: 0.95})
	require.NoError(t, err)

	// 特征顺序必须与模型训练顺序一致：
	// pressure, drift_velocity, confidence_r2, part_temp, scan_speed, quench_flow
	values := vec.Values()
	require.Len(t, values, len(models.FeatureOrder))
	assert.Equal(t, []float64{3.5, -0.06, 0.95, 850, 10, 120}, values)
}

func TestBuild_DriftDeadband(t *testing.T) {
	b := NewBuilder(0.005)

	// 死区内的微小漂移置 0
	vec, err := b.Build(nominalSample(), models.DriftEstimate{Velocity: -0.004, Confidence: 0.9})
	require.NoError(t, err)
	assert.Equal(t, 0.0, vec.DriftVelocity)

	// 死区外保留原值
	vec, err = b.Build(nominalSample(), models.DriftEstimate{Velocity: -0.02, Confidence: 0.9})
	require.NoError(t, err)
	assert.Equal(t, -0.02, vec.DriftVelocity)
}

func TestBuild_SchemaErrors(t *testing.T) {
	b := NewBuilder(0.005)

	cases := []struct {
		name   string
		mutate func(*models.TelemetrySample)
		field  string
	}{
		{"missing timestamp", func(s *models.TelemetrySample) { s.Timestamp = time.Time{} }, "timestamp"},
		{"nan pressure", func(s *models.TelemetrySample) { s.Pressure = math.NaN() }, "pressure"},
		{"inf temp", func(s *models.TelemetrySample) { s.Temp = math.Inf(1) }, "temp"},
		{"nan scan speed", func(s *models.TelemetrySample) { s.ScanSpeed = math.NaN() }, "scan_speed"},
		{"nan flow", func(s *models.TelemetrySample) { s.QuenchFlow = math.NaN() }, "quench_flow"},
		{"missing state", func(s *models.TelemetrySample) { s.MachineState = "" }, "machine_state"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := nominalSample()
			tc.mutate(&sample)

			_, err := b.Build(sample, models.DriftEstimate{})
			require.Error(t, err)
			var schemaErr *models.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tc.field, schemaErr.Field)
		})
	}
}

func TestBuild_InvalidEstimateRejected(t *testing.T) {
	b := NewBuilder(0.005)

	_, err := b.Build(nominalSample(), models.DriftEstimate{Velocity: math.NaN()})
	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "drift_velocity", schemaErr.Field)
}
