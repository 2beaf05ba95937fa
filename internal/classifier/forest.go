package classifier

import (
	"fmt"
	"math/rand"
	"time"

	"wisefido-triage/internal/models"

	"github.com/google/uuid"
)

// ForestConfig 随机森林超参数（固定种子保证可复现）
type ForestConfig struct {
	Trees       int   `json:"trees"`
	MaxDepth    int   `json:"max_depth"`
	Seed        int64 `json:"seed"`
	MaxFeatures int   `json:"max_features"` // 每次划分随机考察的特征数
}

// DefaultForestConfig 默认配置：50 棵树，深度 10，种子 42，sqrt(4)=2 个特征
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:       50,
		MaxDepth:    10,
		Seed:        42,
		MaxFeatures: 2,
	}
}

// Validate 校验配置
func (c ForestConfig) Validate() error {
	if c.Trees <= 0 {
		return fmt.Errorf("trees must be positive, got %d", c.Trees)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > models.NumFeatures {
		return fmt.Errorf("max_features must be in [1, %d], got %d", models.NumFeatures, c.MaxFeatures)
	}
	return nil
}

// Sample 一条带标签的训练样本
type Sample struct {
	Features models.FeatureVector
	Label    models.ConfidenceLevel
}

// Model 训练好的随机森林（训练后只读，可并发预测）
type Model struct {
	ID          string
	Config      ForestConfig
	SampleCount int
	TrainedAt   time.Time
	trees       []tree
}

// Train 使用 bootstrap 聚合的 CART 决策树训练置信度分类器
func Train(samples []Sample, cfg ForestConfig) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingData, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrTrainingData)
	}

	features := make([]models.FeatureVector, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		if !s.Features.InRange() {
			return nil, fmt.Errorf("%w: sample %d features out of range: %v", ErrTrainingData, i, s.Features)
		}
		label := s.Label.Ordinal()
		if label < 0 {
			return nil, fmt.Errorf("%w: sample %d has invalid label %q", ErrTrainingData, i, s.Label)
		}
		features[i] = s.Features
		labels[i] = label
	}

	master := rand.New(rand.NewSource(cfg.Seed))
	trees := make([]tree, 0, cfg.Trees)
	n := len(samples)
	for t := 0; t < cfg.Trees; t++ {
		rng := rand.New(rand.NewSource(master.Int63()))

		bootstrap := make([]int, n)
		for i := range bootstrap {
			bootstrap[i] = rng.Intn(n)
		}

		b := &treeBuilder{
			features: features,
			labels:   labels,
			maxDepth: cfg.MaxDepth,
			maxFeat:  cfg.MaxFeatures,
			rng:      rng,
		}
		b.build(bootstrap, 0)
		trees = append(trees, tree{nodes: b.nodes})
	}

	return &Model{
		ID:          uuid.New().String(),
		Config:      cfg,
		SampleCount: n,
		TrainedAt:   time.Now().UTC(),
		trees:       trees,
	}, nil
}

// PredictProba 各树叶子分布的平均值（软投票）
func (m *Model) PredictProba(fv models.FeatureVector) ([models.NumConfidenceLevels]float64, error) {
	var proba [models.NumConfidenceLevels]float64
	if m == nil || len(m.trees) == 0 {
		return proba, ErrModelNotTrained
	}
	if !fv.InRange() {
		return proba, fmt.Errorf("feature vector out of range: %v", fv)
	}

	for i := range m.trees {
		p := m.trees[i].predictProba(fv)
		for k := range proba {
			proba[k] += p[k]
		}
	}
	for k := range proba {
		proba[k] /= float64(len(m.trees))
	}
	return proba, nil
}

// Predict 预测置信等级；概率相同时取序号较低的等级
func (m *Model) Predict(fv models.FeatureVector) (models.ConfidenceLevel, error) {
	proba, err := m.PredictProba(fv)
	if err != nil {
		return "", err
	}

	best := 0
	for k := 1; k < len(proba); k++ {
		if proba[k] > proba[best] {
			best = k
		}
	}
	return models.ConfidenceLevels[best], nil
}

// TreeCount 森林中树的数量
func (m *Model) TreeCount() int {
	if m == nil {
		return 0
	}
	return len(m.trees)
}
