package models

import "fmt"

// ConfidenceLevel 分类器置信等级（有序：LOW < MEDIUM < HIGH）
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceHigh   ConfidenceLevel = "HIGH"
)

// ConfidenceLevels 按序号排列的全部等级（混淆矩阵行列顺序）
var ConfidenceLevels = []ConfidenceLevel{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}

// NumConfidenceLevels 类别数
const NumConfidenceLevels = 3

// Valid 是否为合法取值
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Ordinal 训练标签编码：LOW=0, MEDIUM=1, HIGH=2；非法值返回 -1
func (c ConfidenceLevel) Ordinal() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	}
	return -1
}

// ConfidenceFromOrdinal 标签编码转等级
func ConfidenceFromOrdinal(n int) (ConfidenceLevel, error) {
	if n < 0 || n >= len(ConfidenceLevels) {
		return "", fmt.Errorf("confidence ordinal out of range: %d", n)
	}
	return ConfidenceLevels[n], nil
}
