package classifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// writeArtifact 把模型工件写入临时文件，返回路径
func writeArtifact(t *testing.T, artifact Artifact) string {
	t.Helper()

	raw, err := json.Marshal(artifact)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), artifact.ModelID+".json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

// gbdtArtifact 构造一个模仿"机器医生"的 GBDT 工件：
// 压力崩塌或快速负漂移 → 高 margin，其余 → 低 margin
func gbdtArtifact(modelID string) Artifact {
	return Artifact{
		ModelID:  modelID,
		Family:   FamilyGBDT,
		Features: append([]string(nil), models.FeatureOrder...),
		Trees: []TreeNodes{
			{
				// node0: pressure <= 2.9 ? leaf(4.0) : node2
				// node2: drift <= -0.05 ? leaf(2.5) : leaf(-3.0)
				Feature:   []int{0, -1, 1, -1, -1},
				Threshold: []float64{2.9, 0, -0.05, 0, 0},
				Left:      []int{1, 0, 3, 0, 0},
				Right:     []int{2, 0, 4, 0, 0},
				Value:     []float64{0, 4.0, 0, 2.5, -3.0},
			},
		},
	}
}

// forestArtifact 构造一个两棵树的随机森林工件（叶子为故障概率）
func forestArtifact(modelID string) Artifact {
	tree := TreeNodes{
		// pressure <= 2.9 ? leaf(0.95) : leaf(0.05)
		Feature:   []int{0, -1, -1},
		Threshold: []float64{2.9, 0, 0},
		Left:      []int{1, 0, 0},
		Right:     []int{2, 0, 0},
		Value:     []float64{0, 0.95, 0.05},
	}
	return Artifact{
		ModelID:  modelID,
		Family:   FamilyForest,
		Features: append([]string(nil), models.FeatureOrder...),
		Trees:    []TreeNodes{tree, tree},
	}
}

func nominalVector() models.FeatureVector {
	return models.FeatureVector{
		Pressure:      3.5,
		DriftVelocity: 0.0,
		ConfidenceR2:  1.0,
		PartTemp:      850,
		ScanSpeed:     10,
		QuenchFlow:    120,
	}
}

func TestLoadArtifact_GBDTScoring(t *testing.T) {
	path := writeArtifact(t, gbdtArtifact("machine-doctor"))

	c, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "machine-doctor", c.ModelID())

	// 正常运行：低概率
	prob, err := c.PredictProbability(nominalVector())
	require.NoError(t, err)
	assert.Less(t, prob, 0.10)

	// 压力崩塌：高概率
	vec := nominalVector()
	vec.Pressure = 2.0
	prob, err = c.PredictProbability(vec)
	require.NoError(t, err)
	assert.Greater(t, prob, 0.90)

	// 快速负漂移：高概率
	vec = nominalVector()
	vec.DriftVelocity = -0.06
	prob, err = c.PredictProbability(vec)
	require.NoError(t, err)
	assert.Greater(t, prob, 0.80)
}

func TestLoadArtifact_ForestScoring(t *testing.T) {
	path := writeArtifact(t, forestArtifact("random-forest"))

	c, err := LoadArtifact(path)
	require.NoError(t, err)

	prob, err := c.PredictProbability(nominalVector())
	require.NoError(t, err)
	assert.InDelta(t, 0.05, prob, 1e-9)

	vec := nominalVector()
	vec.Pressure = 2.0
	prob, err = c.PredictProbability(vec)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, prob, 1e-9)
}

func TestLoadArtifact_ScalerApplied(t *testing.T) {
	artifact := forestArtifact("scaled-forest")
	// center=3.2, scale=0.3：缩放后 pressure 2.9 对应原始 (2.9*0.3)+3.2
	artifact.Scaler = &ScalerParams{
		Center: []float64{3.2, 0, 0, 850, 10, 120},
		Scale:  []float64{0.3, 1, 1, 1, 1, 1},
	}
	// 缩放域内的阈值：0 对应原始压力 3.2
	artifact.Trees[0].Threshold[0] = 0
	artifact.Trees[1].Threshold[0] = 0
	path := writeArtifact(t, artifact)

	c, err := LoadArtifact(path)
	require.NoError(t, err)

	vec := nominalVector()
	vec.Pressure = 3.0 // 缩放后 < 0 → 左子树（高概率叶子）
	prob, err := c.PredictProbability(vec)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, prob, 1e-9)

	vec.Pressure = 3.5 // 缩放后 > 0 → 右子树
	prob, err = c.PredictProbability(vec)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, prob, 1e-9)
}

func TestLoadArtifact_FeatureOrderMismatchRejected(t *testing.T) {
	artifact := gbdtArtifact("bad-order")
	// 交换前两个特征：训练顺序与引擎顺序不一致，必须在加载时拒绝
	artifact.Features[0], artifact.Features[1] = artifact.Features[1], artifact.Features[0]
	path := writeArtifact(t, artifact)

	_, err := LoadArtifact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature order mismatch")
}

func TestLoadArtifact_UnknownFamilyRejected(t *testing.T) {
	artifact := gbdtArtifact("bad-family")
	artifact.Family = "svm"
	path := writeArtifact(t, artifact)

	_, err := LoadArtifact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown family")
}

func TestLoadArtifact_InconsistentTreeRejected(t *testing.T) {
	artifact := gbdtArtifact("bad-tree")
	artifact.Trees[0].Value = artifact.Trees[0].Value[:2]
	path := writeArtifact(t, artifact)

	_, err := LoadArtifact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inconsistent node arrays")
}

func TestLoadArtifact_MissingFileRejected(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestNewEnsemble_OpinionOrderStable(t *testing.T) {
	primary := writeArtifact(t, gbdtArtifact("machine-doctor"))
	secondary := writeArtifact(t, forestArtifact("random-forest"))

	e, err := NewEnsemble(zap.NewNop(), ModelSource{Path: primary}, ModelSource{Path: secondary})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Loaded())
	assert.False(t, e.Degraded())

	opinions, err := e.Score(nominalVector())
	require.NoError(t, err)
	require.Len(t, opinions, 2)
	// 主分类器永远在前
	assert.Equal(t, "machine-doctor", opinions[0].ModelID)
	assert.Equal(t, "random-forest", opinions[1].ModelID)
}

func TestNewEnsemble_DegradedMode(t *testing.T) {
	primary := writeArtifact(t, gbdtArtifact("machine-doctor"))
	missing := filepath.Join(t.TempDir(), "missing.json")

	e, err := NewEnsemble(zap.NewNop(), ModelSource{Path: primary}, ModelSource{Path: missing})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Loaded())
	assert.True(t, e.Degraded())
	require.Len(t, e.LoadErrors(), 1)

	var unavailable *models.ModelUnavailableError
	assert.ErrorAs(t, e.LoadErrors()[0], &unavailable)

	// 降级模式下仍可打分
	opinions, err := e.Score(nominalVector())
	require.NoError(t, err)
	assert.Len(t, opinions, 1)
}

func TestNewEnsemble_AllModelsFailed(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	_, err := NewEnsemble(zap.NewNop(), ModelSource{Path: missing})
	require.Error(t, err)
	var noModel *models.NoModelError
	assert.ErrorAs(t, err, &noModel)
}

func TestEnsemble_ScoreWithZeroClassifiers(t *testing.T) {
	e := NewEnsembleFromClassifiers(zap.NewNop())

	_, err := e.Score(nominalVector())
	require.Error(t, err)
	var noModel *models.NoModelError
	assert.ErrorAs(t, err, &noModel)
}

// 确认遍历保护：异常树（自环）不会死循环
func TestWalkTree_CycleDetected(t *testing.T) {
	tree := TreeNodes{
		Feature:   []int{0, 0},
		Threshold: []float64{0, 0},
		Left:      []int{1, 0},
		Right:     []int{1, 0},
		Value:     []float64{0, 0},
	}

	start := time.Now()
	_, err := walkTree(&tree, []float64{-1, 0, 0, 0, 0, 0})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
