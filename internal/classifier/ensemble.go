package classifier

import (
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// Ensemble 分类器集成适配器
//
// 把若干独立训练的分类器包装在一个接口后面，按注册顺序
// （主分类器在前）返回每个模型的意见。单个模型加载失败时降级运行，
// 零个可用模型时拒绝打分（NoModelError），绝不返回固定默认分
type Ensemble struct {
	classifiers []Classifier
	loadErrors  []*models.ModelUnavailableError
	logger      *zap.Logger
}

// ModelSource 待加载的模型工件
type ModelSource struct {
	Path string
}

// NewEnsemble 按顺序加载模型工件并构建集成
//
// 加载失败的模型记录 ModelUnavailableError 并跳过（降级告警），
// 全部失败时返回 NoModelError——没有模型的引擎不允许对外服务
func NewEnsemble(logger *zap.Logger, sources ...ModelSource) (*Ensemble, error) {
	e := &Ensemble{logger: logger}

	for _, src := range sources {
		c, err := LoadArtifact(src.Path)
		if err != nil {
			loadErr := &models.ModelUnavailableError{
				ModelID: src.Path,
				Path:    src.Path,
				Err:     err,
			}
			e.loadErrors = append(e.loadErrors, loadErr)
			logger.Warn("Classifier failed to load, running degraded",
				zap.String("path", src.Path),
				zap.Error(err),
			)
			continue
		}
		e.classifiers = append(e.classifiers, c)
		logger.Info("Classifier loaded",
			zap.String("model_id", c.ModelID()),
			zap.String("path", src.Path),
		)
	}

	if len(e.classifiers) == 0 {
		return nil, &models.NoModelError{}
	}

	return e, nil
}

// NewEnsembleFromClassifiers 直接从已构建的分类器创建集成
// 新模型家族通过实现 Classifier 接口接入，不需要修改集成逻辑
func NewEnsembleFromClassifiers(logger *zap.Logger, classifiers ...Classifier) *Ensemble {
	return &Ensemble{classifiers: classifiers, logger: logger}
}

// Score 对特征向量打分，每个可用分类器返回一条意见
// 意见顺序稳定：与注册顺序一致（主分类器在前）
func (e *Ensemble) Score(vec models.FeatureVector) ([]models.ClassifierOpinion, error) {
	if len(e.classifiers) == 0 {
		return nil, &models.NoModelError{}
	}

	opinions := make([]models.ClassifierOpinion, 0, len(e.classifiers))
	for _, c := range e.classifiers {
		prob, err := c.PredictProbability(vec)
		if err != nil {
			return nil, err
		}
		opinions = append(opinions, models.ClassifierOpinion{
			ModelID:            c.ModelID(),
			FailureProbability: prob,
		})
	}

	return opinions, nil
}

// Loaded 返回可用分类器数量
func (e *Ensemble) Loaded() int {
	return len(e.classifiers)
}

// Degraded 是否处于降级模式（有模型加载失败）
func (e *Ensemble) Degraded() bool {
	return len(e.loadErrors) > 0
}

// LoadErrors 返回加载失败记录
func (e *Ensemble) LoadErrors() []*models.ModelUnavailableError {
	return e.loadErrors
}
