package service

import "wisefido-triage/internal/models"

// Scenario 演示用现场场景
// ExpectValid 为 false 表示读数应被校验拒绝
type Scenario struct {
	Name        string
	Reading     models.RawReading
	Risk        models.EnvironmentRisk
	ExpectValid bool
}

// sensor 构造原始读数；分级取值不做校验，未定义的分级交由融合引擎拒绝
func sensor(human bool, motion, heat, breathing string) models.RawReading {
	return models.SensorReading{
		HumanDetected:     human,
		MotionLevel:       models.MotionLevel(motion),
		HeatPresence:      models.HeatPresence(heat),
		BreathingDetected: models.BreathingStatus(breathing),
	}.Raw()
}

// DemoScenarios 典型搜救现场
func DemoScenarios() []Scenario {
	return []Scenario{
		{"Responsive Healthy Victim", sensor(true, "HIGH", "NORMAL", "YES"), models.RiskLow, true},
		{"Critical - Unresponsive with Weak Vitals", sensor(true, "NONE", "LOW", "NO"), models.RiskLow, true},
		{"Moderate Injury + High Environmental Risk", sensor(true, "LOW", "NORMAL", "YES"), models.RiskHigh, true},
		{"Weak Response with Uncertain Vitals", sensor(true, "LOW", "NORMAL", "NO"), models.RiskMedium, true},
		{"False Alarm - No Human Detected", sensor(false, "NONE", "LOW", "NO"), models.RiskLow, true},
		{"Building Collapse Survivor - Critical", sensor(true, "LOW", "LOW", "NO"), models.RiskHigh, true},
		{"Flash Flood - Unconscious in water", sensor(true, "NONE", "LOW", "NO"), models.RiskHigh, true},
		{"Road Accident - Victim conscious but in shock", sensor(true, "LOW", "NORMAL", "YES"), models.RiskMedium, true},
		{"Wildlife False Positive", sensor(false, "NONE", "LOW", "NO"), models.RiskLow, true},
		// 传感器上报了未定义的分级
		{"Trapped under debris - unsupported sensor grades", sensor(true, "MINIMAL", "LOW", "SHALLOW"), models.RiskHigh, false},
		{"Fire - unsupported sensor grades", sensor(true, "WEAK", "HIGH", "LABORED"), models.RiskHigh, false},
	}
}

// ValidationCases 输入校验演示
func ValidationCases() []Scenario {
	missing := sensor(true, "HIGH", "NORMAL", "YES")
	delete(missing, models.FieldBreathingDetected)

	return []Scenario{
		{"Valid Data", sensor(true, "HIGH", "NORMAL", "YES"), models.RiskLow, true},
		{"Missing Field", missing, models.RiskLow, false},
		{"Invalid Motion Level", sensor(true, "EXTREME", "NORMAL", "YES"), models.RiskLow, false},
		{"Invalid Heat Presence", sensor(true, "HIGH", "EXTREME", "YES"), models.RiskLow, false},
		{"Invalid Breathing", sensor(true, "HIGH", "NORMAL", "MAYBE"), models.RiskLow, false},
	}
}
