package classifier

import (
	"fmt"
	"math"

	"wisefido-triage/internal/models"
)

// DefaultFolds 交叉验证折数
const DefaultFolds = 5

// Metrics 模型评估报告
type Metrics struct {
	CVScores        []float64                                                   `json:"cross_validation_scores"`
	CVMean          float64                                                     `json:"cv_mean"`
	CVStd           float64                                                     `json:"cv_std"`
	Precision       float64                                                     `json:"precision"`
	Recall          float64                                                     `json:"recall"`
	F1Score         float64                                                     `json:"f1_score"`
	ConfusionMatrix [models.NumConfidenceLevels][models.NumConfidenceLevels]int `json:"confusion_matrix"` // 行=真实，列=预测
	Accuracy        float64                                                     `json:"accuracy"`
}

// Evaluate k 折分层交叉验证 + 全量样本上的加权 precision/recall/F1 与混淆矩阵
// 每折使用 model 的超参数重新训练；除零时对应指标记为 0
func Evaluate(model *Model, samples []Sample, folds int) (*Metrics, error) {
	if model == nil || len(model.trees) == 0 {
		return nil, ErrModelNotTrained
	}
	if folds < 2 {
		return nil, fmt.Errorf("folds must be at least 2, got %d", folds)
	}
	if len(samples) < folds {
		return nil, fmt.Errorf("%w: %d samples is fewer than %d folds", ErrTrainingData, len(samples), folds)
	}

	assignment, err := stratifiedFolds(samples, folds)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, folds)
	for f := 0; f < folds; f++ {
		var train, test []Sample
		for i, s := range samples {
			if assignment[i] == f {
				test = append(test, s)
			} else {
				train = append(train, s)
			}
		}

		foldModel, err := Train(train, model.Config)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		correct := 0
		for _, s := range test {
			pred, err := foldModel.Predict(s.Features)
			if err != nil {
				return nil, fmt.Errorf("fold %d: %w", f, err)
			}
			if pred == s.Label {
				correct++
			}
		}
		scores = append(scores, float64(correct)/float64(len(test)))
	}

	metrics := &Metrics{CVScores: scores}
	metrics.CVMean, metrics.CVStd = meanStd(scores)
	metrics.Accuracy = metrics.CVMean

	for _, s := range samples {
		pred, err := model.Predict(s.Features)
		if err != nil {
			return nil, err
		}
		metrics.ConfusionMatrix[s.Label.Ordinal()][pred.Ordinal()]++
	}
	metrics.Precision, metrics.Recall, metrics.F1Score = weightedScores(metrics.ConfusionMatrix, len(samples))

	return metrics, nil
}

// stratifiedFolds 不打乱顺序的分层划分：按类别依次轮转分配，使各折大小与类别比例尽量均衡
func stratifiedFolds(samples []Sample, folds int) ([]int, error) {
	byClass := make([][]int, models.NumConfidenceLevels)
	for i, s := range samples {
		label := s.Label.Ordinal()
		if label < 0 {
			return nil, fmt.Errorf("%w: sample %d has invalid label %q", ErrTrainingData, i, s.Label)
		}
		byClass[label] = append(byClass[label], i)
	}

	assignment := make([]int, len(samples))
	next := 0
	for _, indices := range byClass {
		for _, i := range indices {
			assignment[i] = next % folds
			next++
		}
	}
	return assignment, nil
}

// weightedScores 按真实类别样本数加权
func weightedScores(cm [models.NumConfidenceLevels][models.NumConfidenceLevels]int, total int) (precision, recall, f1 float64) {
	if total == 0 {
		return 0, 0, 0
	}
	for c := 0; c < models.NumConfidenceLevels; c++ {
		tp := cm[c][c]
		support, predicted := 0, 0
		for k := 0; k < models.NumConfidenceLevels; k++ {
			support += cm[c][k]
			predicted += cm[k][c]
		}
		if support == 0 {
			continue
		}

		p := safeDiv(float64(tp), float64(predicted))
		r := safeDiv(float64(tp), float64(support))
		f := safeDiv(2*p*r, p+r)

		w := float64(support) / float64(total)
		precision += w * p
		recall += w * r
		f1 += w * f
	}
	return precision, recall, f1
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// meanStd 均值与总体标准差
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
