package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wisefido-triage/internal/models"

	"go.uber.org/zap"
)

// ModelProvider 进程内共享的模型句柄
// 启动时显式 Init（加载或训练并持久化），之后所有融合调用复用同一模型；
// 初始化过程由互斥锁保护，并发首次访问只会触发一次训练/写入
type ModelProvider struct {
	mu      sync.Mutex
	store   BlobStore
	dataset DatasetSource
	config  ForestConfig
	logger  *zap.Logger
	model   *Model
}

// NewModelProvider 创建模型句柄；store 为 nil 时只训练不持久化
func NewModelProvider(store BlobStore, dataset DatasetSource, cfg ForestConfig, logger *zap.Logger) *ModelProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelProvider{
		store:   store,
		dataset: dataset,
		config:  cfg,
		logger:  logger,
	}
}

// Init 加载或训练模型（幂等）
// 存储中的模型损坏时按缺失处理：重新训练并覆盖
func (p *ModelProvider) Init(ctx context.Context) (*Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return p.model, nil
	}

	if p.store != nil {
		m, err := Load(ctx, p.store)
		switch {
		case err == nil:
			p.logger.Info("Model loaded from store",
				zap.String("model_id", m.ID),
				zap.Int("trees", m.TreeCount()),
			)
			p.model = m
			return m, nil
		case errors.Is(err, ErrModelNotFound):
			p.logger.Debug("No saved model found, will train new model")
		case errors.Is(err, ErrModelCorrupt):
			p.logger.Warn("Stored model is corrupt, retraining", zap.Error(err))
		default:
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
	}

	m, err := p.trainLocked(ctx)
	if err != nil {
		return nil, err
	}
	p.model = m
	return m, nil
}

// Retrain 显式重新训练并替换当前模型
func (p *ModelProvider) Retrain(ctx context.Context) (*Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.trainLocked(ctx)
	if err != nil {
		return nil, err
	}
	p.model = m
	return m, nil
}

// Model 返回当前模型；未初始化时返回 ErrModelNotTrained
func (p *ModelProvider) Model() (*Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return nil, ErrModelNotTrained
	}
	return p.model, nil
}

// Predict 确保模型已初始化后预测置信等级
func (p *ModelProvider) Predict(ctx context.Context, fv models.FeatureVector) (models.ConfidenceLevel, error) {
	m, err := p.Init(ctx)
	if err != nil {
		return "", err
	}
	return m.Predict(fv)
}

// Samples 读取训练样本（评估使用）
func (p *ModelProvider) Samples(ctx context.Context) ([]Sample, error) {
	if p.dataset == nil {
		return nil, fmt.Errorf("%w: no dataset configured", ErrDatasetNotFound)
	}
	return p.dataset.Samples(ctx)
}

func (p *ModelProvider) trainLocked(ctx context.Context) (*Model, error) {
	p.logger.Info("Starting model training...")

	samples, err := p.Samples(ctx)
	if err != nil {
		p.logger.Error("Failed to load training data", zap.Error(err))
		return nil, err
	}

	m, err := Train(samples, p.config)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Model trained",
		zap.String("model_id", m.ID),
		zap.Int("samples", m.SampleCount),
		zap.Int("trees", m.TreeCount()),
	)

	if p.store != nil {
		if err := Persist(ctx, p.store, m); err != nil {
			p.logger.Error("Failed to persist model",
				zap.String("model_id", m.ID),
				zap.Error(err),
			)
			return nil, err
		}
		p.logger.Info("Model saved", zap.String("model_id", m.ID))
	}
	return m, nil
}
