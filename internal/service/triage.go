package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-triage/internal/classifier"
	"wisefido-triage/internal/fusion"
	"wisefido-triage/internal/models"
	"wisefido-triage/internal/urgency"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssessmentRecorder 研判记录持久化（repository.AssessmentRepository 实现）
type AssessmentRecorder interface {
	CreateAssessment(ctx context.Context, a *models.Assessment) error
}

// AssessmentPublisher 研判结果发布（StreamPublisher 实现）
type AssessmentPublisher interface {
	PublishAssessment(ctx context.Context, a *models.Assessment) error
}

// AssessmentHistory 最近研判记录查询（AssessmentRepository、StreamPublisher 实现）
type AssessmentHistory interface {
	ListRecentAssessments(ctx context.Context, limit int, minLevel models.UrgencyLevel) ([]*models.Assessment, error)
}

// AssessmentLookup 按 ID 查询研判记录（AssessmentRepository 实现）
type AssessmentLookup interface {
	GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error)
}

// ErrHistoryUnavailable 未配置审计表或 Stream 时无法查询历史
var ErrHistoryUnavailable = errors.New("assessment history unavailable: enable AUDIT_ENABLED or STREAM_ENABLED")

// Options 可选组件
type Options struct {
	Recorder  AssessmentRecorder  // nil 表示不写审计表
	Publisher AssessmentPublisher // nil 表示不发布
	History   AssessmentHistory   // nil 表示不支持历史查询
	Lookup    AssessmentLookup    // nil 表示不支持按 ID 查询
	Folds     int                 // 交叉验证折数，<=0 时使用默认值
}

// TriageService 分诊服务（融合 → 紧急程度 → 审计/发布）
type TriageService struct {
	provider  *classifier.ModelProvider
	fusion    *fusion.Engine
	urgency   *urgency.Engine
	recorder  AssessmentRecorder
	publisher AssessmentPublisher
	history   AssessmentHistory
	lookup    AssessmentLookup
	folds     int
	logger    *zap.Logger
}

// NewTriageService 创建分诊服务
// provider 须由调用方创建，服务与融合引擎共享同一个模型句柄
func NewTriageService(provider *classifier.ModelProvider, logger *zap.Logger, opts Options) *TriageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	folds := opts.Folds
	if folds <= 0 {
		folds = classifier.DefaultFolds
	}
	return &TriageService{
		provider:  provider,
		fusion:    fusion.NewEngine(provider, logger.Named("fusion")),
		urgency:   urgency.NewEngine(logger.Named("urgency")),
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		history:   opts.History,
		lookup:    opts.Lookup,
		folds:     folds,
		logger:    logger,
	}
}

// Assess 对一条原始读数完成研判
// 读数校验失败返回 *fusion.ValidationError；审计和发布失败只记录日志
func (s *TriageService) Assess(ctx context.Context, raw models.RawReading, risk models.EnvironmentRisk) (*models.Assessment, error) {
	if !risk.Valid() {
		return nil, fmt.Errorf("invalid environment_risk: %s", risk)
	}

	state, err := s.fusion.Fuse(ctx, raw)
	if err != nil {
		return nil, err
	}
	result := s.urgency.Assign(state, risk)

	a := &models.Assessment{
		AssessmentID:    uuid.New().String(),
		Reading:         raw,
		VictimState:     state,
		EnvironmentRisk: risk,
		Urgency:         result,
		CreatedAt:       time.Now().UTC(),
	}
	if state.PresenceConfirmed {
		if m, err := s.provider.Model(); err == nil {
			a.ModelID = m.ID
		}
	}

	if s.recorder != nil {
		if err := s.recorder.CreateAssessment(ctx, a); err != nil {
			s.logger.Error("Failed to record assessment",
				zap.String("assessment_id", a.AssessmentID),
				zap.Error(err),
			)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAssessment(ctx, a); err != nil {
			s.logger.Error("Failed to publish assessment",
				zap.String("assessment_id", a.AssessmentID),
				zap.Error(err),
			)
		}
	}

	return a, nil
}

// Train 显式重新训练并持久化
func (s *TriageService) Train(ctx context.Context) (*classifier.Model, error) {
	return s.provider.Retrain(ctx)
}

// Evaluate 用训练数据评估当前模型
func (s *TriageService) Evaluate(ctx context.Context) (*classifier.Metrics, error) {
	m, err := s.provider.Model()
	if err != nil {
		return nil, err
	}
	samples, err := s.provider.Samples(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := classifier.Evaluate(m, samples, s.folds)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Model evaluated",
		zap.String("model_id", m.ID),
		zap.Float64("cv_mean", metrics.CVMean),
		zap.Float64("f1_score", metrics.F1Score),
	)
	return metrics, nil
}

// History 最近的研判记录（新记录在前），minLevel 为空时不过滤
func (s *TriageService) History(ctx context.Context, limit int, minLevel models.UrgencyLevel) ([]*models.Assessment, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.ListRecentAssessments(ctx, limit, minLevel)
}

// Assessment 按 ID 查询研判记录（仅审计表支持）
func (s *TriageService) Assessment(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	if s.lookup == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.lookup.GetAssessment(ctx, assessmentID)
}
