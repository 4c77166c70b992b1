package classifier

import (
	"fmt"
	"math"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// treeModel 树模型打分器（gbdt / forest 共用一套节点编码）
type treeModel struct {
	artifact Artifact
}

func (m *treeModel) ModelID() string {
	return m.artifact.ModelID
}

// PredictProbability 对特征向量打分，返回故障概率 [0,1]
func (m *treeModel) PredictProbability(vec models.FeatureVector) (float64, error) {
	x := vec.Values()

	// 训练时带缩放的模型，推理前先做同样的变换
	if m.artifact.Scaler != nil {
		x = applyScaler(x, m.artifact.Scaler)
	}

	var prob float64
	switch m.artifact.Family {
	case FamilyGBDT:
		// margin 求和 + sigmoid
		margin := m.artifact.BaseScore
		for i := range m.artifact.Trees {
			leaf, err := walkTree(&m.artifact.Trees[i], x)
			if err != nil {
				return 0, fmt.Errorf("model %s: %w", m.artifact.ModelID, err)
			}
			margin += leaf
		}
		prob = sigmoid(margin)
	case FamilyForest:
		// 各树叶子概率取平均
		var sum float64
		for i := range m.artifact.Trees {
			leaf, err := walkTree(&m.artifact.Trees[i], x)
			if err != nil {
				return 0, fmt.Errorf("model %s: %w", m.artifact.ModelID, err)
			}
			sum += leaf
		}
		prob = sum / float64(len(m.artifact.Trees))
	default:
		return 0, fmt.Errorf("model %s: unknown family %q", m.artifact.ModelID, m.artifact.Family)
	}

	return clamp01(prob), nil
}

// walkTree 从根节点走到叶子，返回叶子输出值
func walkTree(tree *TreeNodes, x []float64) (float64, error) {
	node := 0
	for steps := 0; steps <= len(tree.Feature); steps++ {
		f := tree.Feature[node]
		if f < 0 {
			return tree.Value[node], nil
		}
		if x[f] <= tree.Threshold[node] {
			node = tree.Left[node]
		} else {
			node = tree.Right[node]
		}
	}
	// 节点数步数内未到叶子，树中存在环
	return 0, fmt.Errorf("malformed tree: traversal did not reach a leaf")
}

// applyScaler 应用鲁棒缩放：(x - center) / scale
func applyScaler(x []float64, params *ScalerParams) []float64 {
	scaled := make([]float64, len(x))
	for i, v := range x {
		if params.Scale[i] != 0 {
			scaled[i] = (v - params.Center[i]) / params.Scale[i]
		} else {
			// scale 为 0 时只做中心化
			scaled[i] = v - params.Center[i]
		}
	}
	return scaled
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
