package models

import "time"

// Assessment 一次完整研判记录（对应 triage_assessments 表）
type Assessment struct {
	AssessmentID    string          `json:"assessment_id" db:"assessment_id"`
	ModelID         string          `json:"model_id" db:"model_id"`
	Reading         RawReading      `json:"reading" db:"reading"` // JSONB
	VictimState     VictimState     `json:"victim_state" db:"-"`
	EnvironmentRisk EnvironmentRisk `json:"environment_risk" db:"environment_risk"`
	Urgency         UrgencyResult   `json:"urgency" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
