package fusion

import (
	"fmt"
	"strings"

	"wisefido-triage/internal/models"
)

// ValidationError 传感器读数校验失败（调用方修正输入即可，不做内部重试）
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid sensor data: " + e.Message
}

// Validate 校验原始读数并转换为 SensorReading
// 校验顺序：必填字段 → human_detected 类型 → motion_level → heat_presence → breathing_detected
func Validate(raw models.RawReading) (models.SensorReading, error) {
	var missing []string
	for _, field := range models.RequiredFields {
		if v, ok := raw[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return models.SensorReading{}, &ValidationError{
			Field:   missing[0],
			Message: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		}
	}

	human, ok := raw[models.FieldHumanDetected].(bool)
	if !ok {
		return models.SensorReading{}, &ValidationError{
			Field:   models.FieldHumanDetected,
			Message: fmt.Sprintf("human_detected must be boolean, got %v", raw[models.FieldHumanDetected]),
		}
	}

	reading := models.SensorReading{
		HumanDetected:     human,
		MotionLevel:       models.MotionLevel(asString(raw[models.FieldMotionLevel])),
		HeatPresence:      models.HeatPresence(asString(raw[models.FieldHeatPresence])),
		BreathingDetected: models.BreathingStatus(asString(raw[models.FieldBreathingDetected])),
	}
	if err := ValidateReading(reading); err != nil {
		return models.SensorReading{}, err
	}
	return reading, nil
}

// ValidateReading 校验已类型化读数的枚举取值
func ValidateReading(r models.SensorReading) error {
	if !r.MotionLevel.Valid() {
		return &ValidationError{
			Field:   models.FieldMotionLevel,
			Message: fmt.Sprintf("motion_level must be NONE/LOW/HIGH, got %s", r.MotionLevel),
		}
	}
	if !r.HeatPresence.Valid() {
		return &ValidationError{
			Field:   models.FieldHeatPresence,
			Message: fmt.Sprintf("heat_presence must be LOW/NORMAL, got %s", r.HeatPresence),
		}
	}
	if !r.BreathingDetected.Valid() {
		return &ValidationError{
			Field:   models.FieldBreathingDetected,
			Message: fmt.Sprintf("breathing_detected must be YES/NO, got %s", r.BreathingDetected),
		}
	}
	return nil
}

// asString 非字符串值原样格式化，交由枚举校验拒绝
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
