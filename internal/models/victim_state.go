package models

// Responsiveness 反应程度（仅由 motion_level 决定）
type Responsiveness string

const (
	Responsive            Responsiveness = "RESPONSIVE"
	WeakResponse          Responsiveness = "WEAK_RESPONSE"
	Unresponsive          Responsiveness = "UNRESPONSIVE"
	ResponsivenessUnknown Responsiveness = "UNKNOWN"
)

// Valid 是否为合法取值
func (r Responsiveness) Valid() bool {
	switch r {
	case Responsive, WeakResponse, Unresponsive, ResponsivenessUnknown:
		return true
	}
	return false
}

// VitalSigns 生命体征（非医学判断，仅由热信号+呼吸决定）
type VitalSigns string

const (
	StableSigns       VitalSigns = "STABLE_SIGNS"
	UncertainSigns    VitalSigns = "UNCERTAIN_SIGNS"
	WeakSigns         VitalSigns = "WEAK_SIGNS"
	VitalSignsUnknown VitalSigns = "UNKNOWN"
)

// Valid 是否为合法取值
func (v VitalSigns) Valid() bool {
	switch v {
	case StableSigns, UncertainSigns, WeakSigns, VitalSignsUnknown:
		return true
	}
	return false
}

// VictimState 融合结果（每次融合新建，返回后不再修改）
type VictimState struct {
	PresenceConfirmed bool            `json:"presence_confirmed"`
	Responsiveness    Responsiveness  `json:"responsiveness"`
	VitalSigns        VitalSigns      `json:"vital_signs"`
	ConfidenceLevel   ConfidenceLevel `json:"confidence_level"`
	FusionExplanation []string        `json:"fusion_explanation"`
}

// NoPresenceState 未检测到人时的固定状态
func NoPresenceState(explanation string) VictimState {
	return VictimState{
		PresenceConfirmed: false,
		Responsiveness:    ResponsivenessUnknown,
		VitalSigns:        VitalSignsUnknown,
		ConfidenceLevel:   ConfidenceLow,
		FusionExplanation: []string{explanation},
	}
}
