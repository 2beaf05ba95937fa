package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"wisefido-triage/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AssessmentsSchema triage_assessments 建表语句
const AssessmentsSchema = `
CREATE TABLE IF NOT EXISTS triage_assessments (
	assessment_id       UUID PRIMARY KEY,
	model_id            TEXT,
	reading             JSONB NOT NULL,
	presence_confirmed  BOOLEAN NOT NULL,
	responsiveness      VARCHAR(20) NOT NULL,
	vital_signs         VARCHAR(20) NOT NULL,
	confidence_level    VARCHAR(10) NOT NULL,
	fusion_explanation  JSONB NOT NULL,
	environment_risk    VARCHAR(10) NOT NULL,
	urgency_level       VARCHAR(10) NOT NULL,
	urgency_reason      JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ErrAssessmentNotFound 研判记录不存在
var ErrAssessmentNotFound = errors.New("assessment not found")

// AssessmentRepository 研判记录仓库（审计用途，只追加）
type AssessmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssessmentRepository 创建研判记录仓库
func NewAssessmentRepository(db *sql.DB, logger *zap.Logger) *AssessmentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在则跳过）
func (r *AssessmentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, AssessmentsSchema); err != nil {
		return fmt.Errorf("failed to create triage_assessments table: %w", err)
	}
	return nil
}

// CreateAssessment 写入一条研判记录
func (r *AssessmentRepository) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	if a == nil {
		return fmt.Errorf("assessment is required")
	}
	if a.AssessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}

	reading, err := json.Marshal(a.Reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	explanation, err := json.Marshal(a.VictimState.FusionExplanation)
	if err != nil {
		return fmt.Errorf("failed to marshal fusion_explanation: %w", err)
	}
	reason, err := json.Marshal(a.Urgency.Reason)
	if err != nil {
		return fmt.Errorf("failed to marshal urgency_reason: %w", err)
	}

	query := `
		INSERT INTO triage_assessments (
			assessment_id,
			model_id,
			reading,
			presence_confirmed,
			responsiveness,
			vital_signs,
			confidence_level,
			fusion_explanation,
			environment_risk,
			urgency_level,
			urgency_reason,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		a.AssessmentID,
		nullString(a.ModelID),
		string(reading),
		a.VictimState.PresenceConfirmed,
		string(a.VictimState.Responsiveness),
		string(a.VictimState.VitalSigns),
		string(a.VictimState.ConfidenceLevel),
		string(explanation),
		string(a.EnvironmentRisk),
		string(a.Urgency.UrgencyLevel),
		string(reason),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	r.logger.Debug("Assessment recorded",
		zap.String("assessment_id", a.AssessmentID),
		zap.String("urgency_level", string(a.Urgency.UrgencyLevel)),
	)
	return nil
}

const selectAssessment = `
	SELECT
		assessment_id,
		model_id,
		reading,
		presence_confirmed,
		responsiveness,
		vital_signs,
		confidence_level,
		fusion_explanation,
		environment_risk,
		urgency_level,
		urgency_reason,
		created_at
	FROM triage_assessments
`

// GetAssessment 根据 assessment_id 获取研判记录
func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("assessment_id is required")
	}

	query := selectAssessment + `WHERE assessment_id = $1`
	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, assessmentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: assessment_id=%s", ErrAssessmentNotFound, assessmentID)
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// ListRecentAssessments 按时间倒序列出紧急程度不低于 minLevel 的研判记录
// minLevel 为空时不过滤
func (r *AssessmentRepository) ListRecentAssessments(ctx context.Context, limit int, minLevel models.UrgencyLevel) ([]*models.Assessment, error) {
	if minLevel != "" && !minLevel.Valid() {
		return nil, fmt.Errorf("invalid urgency level: %s", minLevel)
	}
	if limit <= 0 {
		limit = 20
	}

	levels := []string{}
	for _, l := range []models.UrgencyLevel{
		models.UrgencyNone, models.UrgencyModerate, models.UrgencyHigh, models.UrgencyCritical,
	} {
		if minLevel == "" || l.Rank() >= minLevel.Rank() {
			levels = append(levels, string(l))
		}
	}

	query := selectAssessment + `
		WHERE urgency_level = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(levels), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (*models.Assessment, error) {
	var a models.Assessment
	var modelID sql.NullString
	var reading, explanation, reason []byte
	var responsiveness, vitalSigns, confidence, risk, level string

	err := row.Scan(
		&a.AssessmentID,
		&modelID,
		&reading,
		&a.VictimState.PresenceConfirmed,
		&responsiveness,
		&vitalSigns,
		&confidence,
		&explanation,
		&risk,
		&level,
		&reason,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if modelID.Valid {
		a.ModelID = modelID.String
	}
	a.VictimState.Responsiveness = models.Responsiveness(responsiveness)
	a.VictimState.VitalSigns = models.VitalSigns(vitalSigns)
	a.VictimState.ConfidenceLevel = models.ConfidenceLevel(confidence)
	a.EnvironmentRisk = models.EnvironmentRisk(risk)
	a.Urgency.UrgencyLevel = models.UrgencyLevel(level)

	if len(reading) > 0 {
		if err := json.Unmarshal(reading, &a.Reading); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
		}
	}
	if len(explanation) > 0 {
		if err := json.Unmarshal(explanation, &a.VictimState.FusionExplanation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fusion_explanation: %w", err)
		}
	}
	if len(reason) > 0 {
		if err := json.Unmarshal(reason, &a.Urgency.Reason); err != nil {
			return nil, fmt.Errorf("failed to unmarshal urgency_reason: %w", err)
		}
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
