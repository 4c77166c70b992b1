// Package classifier 加载冻结的分类器模型工件并提供黑盒概率打分
//
// 模型在离线训练后导出为 JSON 工件（树结构的扁平数组编码），
// 进程启动时加载一次，运行期间只读，重载需要重启进程。
// 融合引擎只依赖 Classifier 接口，对模型家族不感知。
package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// Classifier 黑盒分类器能力接口
// 任何实现都是纯函数：特征向量 → 故障概率 [0,1]
type Classifier interface {
	ModelID() string
	PredictProbability(vec models.FeatureVector) (float64, error)
}

// 模型家族
const (
	FamilyGBDT   = "gbdt"   // 梯度提升树：叶子为 margin，求和后过 sigmoid
	FamilyForest = "forest" // 随机森林：叶子为故障概率，取平均
)

// TreeNodes 单棵决策树的扁平数组编码
// Feature[i] == -1 表示叶子节点，Value[i] 为叶子输出；
// 内部节点按 x[Feature[i]] <= Threshold[i] 走 Left，否则走 Right
type TreeNodes struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// ScalerParams 鲁棒缩放参数（训练时导出，center/scale 与特征顺序对齐）
type ScalerParams struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"`
}

// Artifact 模型工件文件结构
type Artifact struct {
	ModelID   string        `json:"model_id"`
	Family    string        `json:"family"`
	Features  []string      `json:"features"`
	BaseScore float64       `json:"base_score"`
	Scaler    *ScalerParams `json:"scaler,omitempty"`
	Trees     []TreeNodes   `json:"trees"`
}

// LoadArtifact 从文件加载模型工件
//
// 工件携带训练时的特征顺序，必须与 models.FeatureOrder 完全一致，
// 否则拒绝加载——特征顺序错位是这一子系统最危险的潜在缺陷，
// 宁可启动失败也不能带错序模型上线
func LoadArtifact(path string) (Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	if err := validateArtifact(&artifact); err != nil {
		return nil, err
	}

	return &treeModel{artifact: artifact}, nil
}

// validateArtifact 结构与契约校验
func validateArtifact(a *Artifact) error {
	if a.ModelID == "" {
		return fmt.Errorf("model artifact missing model_id")
	}
	if a.Family != FamilyGBDT && a.Family != FamilyForest {
		return fmt.Errorf("model %s: unknown family %q", a.ModelID, a.Family)
	}

	// 特征顺序契约校验
	if len(a.Features) != len(models.FeatureOrder) {
		return fmt.Errorf("model %s: trained on %d features, engine provides %d",
			a.ModelID, len(a.Features), len(models.FeatureOrder))
	}
	for i, name := range a.Features {
		if name != models.FeatureOrder[i] {
			return fmt.Errorf("model %s: feature order mismatch at index %d: trained on %q, engine provides %q",
				a.ModelID, i, name, models.FeatureOrder[i])
		}
	}

	if len(a.Trees) == 0 {
		return fmt.Errorf("model %s: artifact contains no trees", a.ModelID)
	}
	for ti, tree := range a.Trees {
		n := len(tree.Feature)
		if n == 0 ||
			len(tree.Threshold) != n || len(tree.Left) != n ||
			len(tree.Right) != n || len(tree.Value) != n {
			return fmt.Errorf("model %s: tree %d has inconsistent node arrays", a.ModelID, ti)
		}
		for ni, f := range tree.Feature {
			if f >= len(models.FeatureOrder) {
				return fmt.Errorf("model %s: tree %d node %d references unknown feature index %d",
					a.ModelID, ti, ni, f)
			}
			if f >= 0 {
				if tree.Left[ni] < 0 || tree.Left[ni] >= n || tree.Right[ni] < 0 || tree.Right[ni] >= n {
					return fmt.Errorf("model %s: tree %d node %d has child index out of range", a.ModelID, ti, ni)
				}
			}
		}
	}

	if a.Scaler != nil {
		if len(a.Scaler.Center) != len(models.FeatureOrder) || len(a.Scaler.Scale) != len(models.FeatureOrder) {
			return fmt.Errorf("model %s: scaler parameter length mismatch", a.ModelID)
		}
	}

	return nil
}
