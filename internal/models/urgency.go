package models

import (
	"fmt"
	"strings"
)

// UrgencyLevel 救援紧急程度（有序：NONE < MODERATE < HIGH < CRITICAL）
type UrgencyLevel string

const (
	UrgencyNone     UrgencyLevel = "NONE"
	UrgencyModerate UrgencyLevel = "MODERATE"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

// Rank 序号，非法值返回 -1
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyNone:
		return 0
	case UrgencyModerate:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	}
	return -1
}

// Valid 是否为合法取值
func (u UrgencyLevel) Valid() bool {
	return u.Rank() >= 0
}

// Escalate 上调一级，CRITICAL 封顶；NONE 不参与升级
func (u UrgencyLevel) Escalate() UrgencyLevel {
	switch u {
	case UrgencyModerate:
		return UrgencyHigh
	case UrgencyHigh, UrgencyCritical:
		return UrgencyCritical
	}
	return u
}

// ParseUrgencyLevel 解析紧急程度（大小写不敏感）
func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	u := UrgencyLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("urgency level must be NONE/MODERATE/HIGH/CRITICAL, got %s", s)
	}
	return u, nil
}

// EnvironmentRisk 现场环境风险
type EnvironmentRisk string

const (
	RiskLow    EnvironmentRisk = "LOW"
	RiskMedium EnvironmentRisk = "MEDIUM"
	RiskHigh   EnvironmentRisk = "HIGH"
)

// Valid 是否为合法取值
func (r EnvironmentRisk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ParseEnvironmentRisk 解析环境风险，空字符串默认 LOW
func ParseEnvironmentRisk(s string) (EnvironmentRisk, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RiskLow, nil
	}
	r := EnvironmentRisk(s)
	if !r.Valid() {
		return "", fmt.Errorf("environment_risk must be LOW/MEDIUM/HIGH, got %s", s)
	}
	return r, nil
}

// UrgencyResult 紧急程度判定结果
type UrgencyResult struct {
	UrgencyLevel UrgencyLevel `json:"urgency_level"`
	Reason       []string     `json:"reason"`
}
