package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MotionLevel 运动强度（雷达/运动传感器离散输出）
type MotionLevel string

const (
	MotionNone MotionLevel = "NONE"
	MotionLow  MotionLevel = "LOW"
	MotionHigh MotionLevel = "HIGH"
)

// Valid 是否为合法取值
func (m MotionLevel) Valid() bool {
	switch m {
	case MotionNone, MotionLow, MotionHigh:
		return true
	}
	return false
}

// HeatPresence 热成像体温信号
type HeatPresence string

const (
	HeatLow    HeatPresence = "LOW"
	HeatNormal HeatPresence = "NORMAL"
)

// Valid 是否为合法取值
func (h HeatPresence) Valid() bool {
	switch h {
	case HeatLow, HeatNormal:
		return true
	}
	return false
}

// BreathingStatus 呼吸检测结果
type BreathingStatus string

const (
	BreathingYes BreathingStatus = "YES"
	BreathingNo  BreathingStatus = "NO"
)

// Valid 是否为合法取值
func (b BreathingStatus) Valid() bool {
	switch b {
	case BreathingYes, BreathingNo:
		return true
	}
	return false
}

// 传感器读数字段名（JSON 键，同时用于校验错误信息）
const (
	FieldHumanDetected     = "human_detected"
	FieldMotionLevel       = "motion_level"
	FieldHeatPresence      = "heat_presence"
	FieldBreathingDetected = "breathing_detected"
)

// RequiredFields 传感器读数必填字段（固定顺序，即特征向量顺序）
var RequiredFields = []string{
	FieldHumanDetected,
	FieldMotionLevel,
	FieldHeatPresence,
	FieldBreathingDetected,
}

// RawReading 外部传入的原始读数（未校验，JSON 对象解码结果）
type RawReading map[string]interface{}

// ParseRawReading 解析 JSON 对象为原始读数
func ParseRawReading(data []byte) (RawReading, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw RawReading
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode sensor reading: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("sensor reading must be a JSON object")
	}
	return raw, nil
}

// SensorReading 校验后的传感器读数
type SensorReading struct {
	HumanDetected     bool            `json:"human_detected"`
	MotionLevel       MotionLevel     `json:"motion_level"`
	HeatPresence      HeatPresence    `json:"heat_presence"`
	BreathingDetected BreathingStatus `json:"breathing_detected"`
}

// Raw 转换回原始读数（便于记录与回放）
func (r SensorReading) Raw() RawReading {
	return RawReading{
		FieldHumanDetected:     r.HumanDetected,
		FieldMotionLevel:       string(r.MotionLevel),
		FieldHeatPresence:      string(r.HeatPresence),
		FieldBreathingDetected: string(r.BreathingDetected),
	}
}

// NumFeatures 特征数
const NumFeatures = 4

// FeatureVector 分类器输入特征
// 顺序：human_detected, motion_level, heat_presence, breathing_detected
type FeatureVector [NumFeatures]int

// FeatureRanges 每个特征槽位的最大取值（最小值均为 0）
// 编码器与训练数据加载共用此表，保证训练/推理编码一致
var FeatureRanges = FeatureVector{1, 2, 1, 1}

// InRange 特征向量是否落在编码器值域内
func (f FeatureVector) InRange() bool {
	for i, v := range f {
		if v < 0 || v > FeatureRanges[i] {
			return false
		}
	}
	return true
}
