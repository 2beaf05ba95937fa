// Package urgency 根据受困者状态和环境风险评定救援紧急程度
package urgency

import (
	"wisefido-triage/internal/models"

	"go.uber.org/zap"
)

// 判定原因文案
const (
	ReasonNoPresence                 = "No confirmed human presence"
	ReasonUnresponsiveWeakSigns      = "CRITICAL: Victim unresponsive with weak vital indicators - immediate rescue needed"
	ReasonHighConfidenceUnresponsive = "CRITICAL: High confidence victim is unresponsive - immediate intervention required"
	ReasonLimitedResponse            = "HIGH: Victim shows limited responsiveness and unstable indicators"
	ReasonWeakResponseWeakSigns      = "HIGH: Weak responsiveness combined with weak vital signs"
	ReasonModerate                   = "MODERATE: Victim shows responsiveness or stable indicators"
	ReasonEscalatedHigh              = "Escalated to HIGH due to high environmental risk"
	ReasonEscalatedCritical          = "Escalated to CRITICAL due to high environmental risk"
	ReasonEscalatedMediumRisk        = "Escalated to HIGH due to medium environmental risk and high confidence"
)

// Engine 紧急程度评定引擎（纯规则，无状态）
type Engine struct {
	logger *zap.Logger
}

// NewEngine 创建评定引擎
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Assign 评定紧急程度
// 先按规则表确定基础等级（首条命中即生效），再按环境风险升级；
// 未确认有人时直接返回 NONE，不做任何升级
func (e *Engine) Assign(state models.VictimState, risk models.EnvironmentRisk) models.UrgencyResult {
	if !state.PresenceConfirmed {
		e.logger.Info("Urgency assigned",
			zap.String("urgency_level", string(models.UrgencyNone)),
			zap.String("environment_risk", string(risk)),
		)
		return models.UrgencyResult{
			UrgencyLevel: models.UrgencyNone,
			Reason:       []string{ReasonNoPresence},
		}
	}

	level, reason := baseLevel(state)
	result := models.UrgencyResult{
		UrgencyLevel: level,
		Reason:       []string{reason},
	}
	escalate(&result, state, risk)

	fields := []zap.Field{
		zap.String("urgency_level", string(result.UrgencyLevel)),
		zap.String("base_level", string(level)),
		zap.String("environment_risk", string(risk)),
		zap.Strings("reason", result.Reason),
	}
	if result.UrgencyLevel == models.UrgencyCritical {
		e.logger.Warn("Critical urgency assigned", fields...)
	} else {
		e.logger.Info("Urgency assigned", fields...)
	}
	return result
}

// baseLevel 基础等级规则表，按优先级顺序匹配
func baseLevel(state models.VictimState) (models.UrgencyLevel, string) {
	r, v := state.Responsiveness, state.VitalSigns

	switch {
	case r == models.Unresponsive && v == models.WeakSigns:
		return models.UrgencyCritical, ReasonUnresponsiveWeakSigns
	case state.ConfidenceLevel == models.ConfidenceHigh && r == models.Unresponsive:
		return models.UrgencyCritical, ReasonHighConfidenceUnresponsive
	case (r == models.Unresponsive || r == models.WeakResponse) &&
		(v == models.UncertainSigns || v == models.WeakSigns):
		return models.UrgencyHigh, ReasonLimitedResponse
	case r == models.WeakResponse && v == models.WeakSigns:
		// 已被上一条覆盖，保留原有判定顺序
		return models.UrgencyHigh, ReasonWeakResponseWeakSigns
	default:
		return models.UrgencyModerate, ReasonModerate
	}
}

// escalate 环境风险升级，只升不降，封顶 CRITICAL
func escalate(result *models.UrgencyResult, state models.VictimState, risk models.EnvironmentRisk) {
	switch risk {
	case models.RiskHigh:
		next := result.UrgencyLevel.Escalate()
		if next == result.UrgencyLevel {
			return
		}
		result.UrgencyLevel = next
		if next == models.UrgencyCritical {
			result.Reason = append(result.Reason, ReasonEscalatedCritical)
		} else {
			result.Reason = append(result.Reason, ReasonEscalatedHigh)
		}
	case models.RiskMedium:
		if result.UrgencyLevel == models.UrgencyModerate && state.ConfidenceLevel == models.ConfidenceHigh {
			result.UrgencyLevel = models.UrgencyHigh
			result.Reason = append(result.Reason, ReasonEscalatedMediumRisk)
		}
	}
}
