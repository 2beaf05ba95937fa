package fusion

import "wisefido-triage/internal/models"

// Encode 将校验后的读数编码为分类器特征
// 编码表与训练集一致：human_detected 0/1，motion_level NONE/LOW/HIGH=0/1/2，
// heat_presence LOW/NORMAL=0/1，breathing_detected NO/YES=0/1
// 调用方必须先完成校验
func Encode(r models.SensorReading) models.FeatureVector {
	var fv models.FeatureVector

	if r.HumanDetected {
		fv[0] = 1
	}

	switch r.MotionLevel {
	case models.MotionNone:
		fv[1] = 0
	case models.MotionLow:
		fv[1] = 1
	case models.MotionHigh:
		fv[1] = 2
	}

	switch r.HeatPresence {
	case models.HeatLow:
		fv[2] = 0
	case models.HeatNormal:
		fv[2] = 1
	}

	switch r.BreathingDetected {
	case models.BreathingNo:
		fv[3] = 0
	case models.BreathingYes:
		fv[3] = 1
	}

	return fv
}
