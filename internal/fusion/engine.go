// Package fusion 提供传感器信号融合功能
//
// 融合流程（解释链按以下顺序追加）：
//   - 校验读数
//   - 未检测到人：直接返回 UNKNOWN 状态，不调用分类器
//   - 确认有人 → 分类器预测置信等级
//   - 反应程度：仅由 motion_level 决定
//   - 生命体征：仅由 heat_presence + breathing_detected 决定
//   - 最后记录分类器预测结果
package fusion

import (
	"context"
	"fmt"

	"wisefido-triage/internal/models"

	"go.uber.org/zap"
)

// 解释链文案
const (
	ExplainNoPresence     = "No human presence detected by sensors"
	ExplainPresence       = "Human presence confirmed"
	ExplainHighMotion     = "High motion responsiveness detected"
	ExplainLowMotion      = "Low motion responsiveness detected"
	ExplainNoMotion       = "No motion responsiveness detected"
	ExplainStableSigns    = "Normal heat and breathing detected"
	ExplainUncertainSigns = "Heat detected but breathing not confirmed"
	ExplainWeakSigns      = "Low heat or no breathing detected"
	explainConfidenceFmt  = "Model predicted confidence: %s"
)

// Predictor 置信度分类器（classifier.ModelProvider 实现）
type Predictor interface {
	Predict(ctx context.Context, fv models.FeatureVector) (models.ConfidenceLevel, error)
}

// Engine 融合引擎（持有共享模型句柄的引用）
type Engine struct {
	predictor Predictor
	logger    *zap.Logger
}

// NewEngine 创建融合引擎
func NewEngine(predictor Predictor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		predictor: predictor,
		logger:    logger,
	}
}

// Fuse 校验原始读数并融合
func (e *Engine) Fuse(ctx context.Context, raw models.RawReading) (models.VictimState, error) {
	reading, err := Validate(raw)
	if err != nil {
		e.logger.Warn("Validation failed", zap.Error(err))
		return models.VictimState{}, err
	}
	return e.fuse(ctx, reading)
}

// FuseReading 融合已类型化的读数（仍校验枚举取值）
func (e *Engine) FuseReading(ctx context.Context, reading models.SensorReading) (models.VictimState, error) {
	if err := ValidateReading(reading); err != nil {
		e.logger.Warn("Validation failed", zap.Error(err))
		return models.VictimState{}, err
	}
	return e.fuse(ctx, reading)
}

func (e *Engine) fuse(ctx context.Context, reading models.SensorReading) (models.VictimState, error) {
	if !reading.HumanDetected {
		e.logger.Info("No human presence detected")
		return models.NoPresenceState(ExplainNoPresence), nil
	}

	state := models.VictimState{
		PresenceConfirmed: true,
		FusionExplanation: []string{ExplainPresence},
	}
	e.logger.Info("Human presence confirmed - analyzing vitals")

	confidence, err := e.predictor.Predict(ctx, Encode(reading))
	if err != nil {
		e.logger.Error("Confidence prediction failed", zap.Error(err))
		return models.VictimState{}, fmt.Errorf("failed to predict confidence: %w", err)
	}
	state.ConfidenceLevel = confidence

	var explain string
	state.Responsiveness, explain = responsiveness(reading.MotionLevel)
	state.FusionExplanation = append(state.FusionExplanation, explain)

	state.VitalSigns, explain = vitalSigns(reading.HeatPresence, reading.BreathingDetected)
	state.FusionExplanation = append(state.FusionExplanation, explain)

	state.FusionExplanation = append(state.FusionExplanation, fmt.Sprintf(explainConfidenceFmt, confidence))

	e.logger.Debug("Victim state fused",
		zap.String("responsiveness", string(state.Responsiveness)),
		zap.String("vital_signs", string(state.VitalSigns)),
		zap.String("confidence_level", string(state.ConfidenceLevel)),
	)
	return state, nil
}

// responsiveness 反应程度只看运动强度，与分类器无关
func responsiveness(motion models.MotionLevel) (models.Responsiveness, string) {
	switch motion {
	case models.MotionHigh:
		return models.Responsive, ExplainHighMotion
	case models.MotionLow:
		return models.WeakResponse, ExplainLowMotion
	default:
		return models.Unresponsive, ExplainNoMotion
	}
}

// vitalSigns 热信号 LOW 时无论呼吸如何均为 WEAK_SIGNS
func vitalSigns(heat models.HeatPresence, breathing models.BreathingStatus) (models.VitalSigns, string) {
	switch {
	case heat == models.HeatNormal && breathing == models.BreathingYes:
		return models.StableSigns, ExplainStableSigns
	case heat == models.HeatNormal && breathing == models.BreathingNo:
		return models.UncertainSigns, ExplainUncertainSigns
	default:
		return models.WeakSigns, ExplainWeakSigns
	}
}
