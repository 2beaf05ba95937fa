package fusion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wisefido-triage/internal/classifier"
	"wisefido-triage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePredictor 记录调用次数，返回固定等级
type fakePredictor struct {
	mu    sync.Mutex
	level models.ConfidenceLevel
	err   error
	calls []models.FeatureVector
}

func (f *fakePredictor) Predict(ctx context.Context, fv models.FeatureVector) (models.ConfidenceLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fv)
	if f.err != nil {
		return "", f.err
	}
	return f.level, nil
}

func newTestEngine(level models.ConfidenceLevel) (*Engine, *fakePredictor) {
	p := &fakePredictor{level: level}
	return NewEngine(p, zap.NewNop()), p
}

func rawReading(human interface{}, motion, heat, breathing interface{}) models.RawReading {
	return models.RawReading{
		models.FieldHumanDetected:     human,
		models.FieldMotionLevel:       motion,
		models.FieldHeatPresence:      heat,
		models.FieldBreathingDetected: breathing,
	}
}

var (
	motionLevels    = []models.MotionLevel{models.MotionNone, models.MotionLow, models.MotionHigh}
	heatLevels      = []models.HeatPresence{models.HeatLow, models.HeatNormal}
	breathingLevels = []models.BreathingStatus{models.BreathingNo, models.BreathingYes}
)

func allReadings() []models.SensorReading {
	var out []models.SensorReading
	for _, human := range []bool{false, true} {
		for _, m := range motionLevels {
			for _, h := range heatLevels {
				for _, b := range breathingLevels {
					out = append(out, models.SensorReading{
						HumanDetected:     human,
						MotionLevel:       m,
						HeatPresence:      h,
						BreathingDetected: b,
					})
				}
			}
		}
	}
	return out
}

func TestEncode(t *testing.T) {
	fv := Encode(models.SensorReading{
		HumanDetected:     true,
		MotionLevel:       models.MotionHigh,
		HeatPresence:      models.HeatNormal,
		BreathingDetected: models.BreathingYes,
	})
	assert.Equal(t, models.FeatureVector{1, 2, 1, 1}, fv)

	fv = Encode(models.SensorReading{
		HumanDetected:     false,
		MotionLevel:       models.MotionNone,
		HeatPresence:      models.HeatLow,
		BreathingDetected: models.BreathingNo,
	})
	assert.Equal(t, models.FeatureVector{0, 0, 0, 0}, fv)
}

func TestEncode_Injective(t *testing.T) {
	seen := make(map[models.FeatureVector]models.SensorReading)
	for _, r := range allReadings() {
		fv := Encode(r)
		assert.True(t, fv.InRange(), "%v out of range", fv)
		prev, dup := seen[fv]
		assert.False(t, dup, "%v and %v encode to %v", prev, r, fv)
		seen[fv] = r
	}
	assert.Len(t, seen, 24)
}

func TestEncode_MatchesTrainingData(t *testing.T) {
	samples, err := classifier.LoadDataset("../classifier/testdata/sensor_training_data.csv")
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	for i, s := range samples {
		assert.True(t, s.Features.InRange(), "row %d: %v outside encoder ranges", i+1, s.Features)
	}

	// 每个特征的取值区间必须与编码器可产出的区间一致
	var maxSeen models.FeatureVector
	for _, r := range allReadings() {
		fv := Encode(r)
		for i := range fv {
			if fv[i] > maxSeen[i] {
				maxSeen[i] = fv[i]
			}
		}
	}
	assert.Equal(t, models.FeatureRanges, maxSeen)
}

func TestValidate_MissingField(t *testing.T) {
	raw := models.RawReading{
		models.FieldHumanDetected: true,
		models.FieldMotionLevel:   "HIGH",
		models.FieldHeatPresence:  "NORMAL",
	}
	_, err := Validate(raw)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldBreathingDetected, verr.Field)
	assert.Contains(t, err.Error(), "breathing_detected")
}

func TestValidate_MissingFieldsListed(t *testing.T) {
	_, err := Validate(models.RawReading{})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldHumanDetected, verr.Field)
	for _, f := range models.RequiredFields {
		assert.Contains(t, err.Error(), f)
	}
}

func TestValidate_NullCountsAsMissing(t *testing.T) {
	_, err := Validate(rawReading(true, nil, "NORMAL", "YES"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldMotionLevel, verr.Field)
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   models.RawReading
		field string
	}{
		{"human string", rawReading("true", "HIGH", "NORMAL", "YES"), models.FieldHumanDetected},
		{"human number", rawReading(float64(1), "HIGH", "NORMAL", "YES"), models.FieldHumanDetected},
		{"motion invalid", rawReading(true, "MEDIUM", "NORMAL", "YES"), models.FieldMotionLevel},
		{"motion lowercase", rawReading(true, "high", "NORMAL", "YES"), models.FieldMotionLevel},
		{"motion number", rawReading(true, float64(2), "NORMAL", "YES"), models.FieldMotionLevel},
		{"heat invalid", rawReading(true, "HIGH", "HIGH", "YES"), models.FieldHeatPresence},
		{"breathing invalid", rawReading(true, "HIGH", "NORMAL", "MAYBE"), models.FieldBreathingDetected},
		{"breathing bool", rawReading(true, "HIGH", "NORMAL", true), models.FieldBreathingDetected},
	}

	messages := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.raw)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, err.Error(), tt.field)
			messages[verr.Field] = true
		})
	}
	assert.Len(t, messages, 4)
}

func TestValidate_Valid(t *testing.T) {
	r, err := Validate(rawReading(true, "LOW", "NORMAL", "NO"))
	require.NoError(t, err)
	assert.Equal(t, models.SensorReading{
		HumanDetected:     true,
		MotionLevel:       models.MotionLow,
		HeatPresence:      models.HeatNormal,
		BreathingDetected: models.BreathingNo,
	}, r)
}

// Scenario: 运动强 + 体征稳定
func TestFuse_ResponsiveStable(t *testing.T) {
	e, p := newTestEngine(models.ConfidenceHigh)

	state, err := e.Fuse(context.Background(), rawReading(true, "HIGH", "NORMAL", "YES"))
	require.NoError(t, err)

	assert.True(t, state.PresenceConfirmed)
	assert.Equal(t, models.Responsive, state.Responsiveness)
	assert.Equal(t, models.StableSigns, state.VitalSigns)
	assert.Equal(t, models.ConfidenceHigh, state.ConfidenceLevel)
	assert.Equal(t, []string{
		ExplainPresence,
		ExplainHighMotion,
		ExplainStableSigns,
		"Model predicted confidence: HIGH",
	}, state.FusionExplanation)

	require.Len(t, p.calls, 1)
	assert.Equal(t, models.FeatureVector{1, 2, 1, 1}, p.calls[0])
}

func TestFuse_MissingFieldRejected(t *testing.T) {
	e, p := newTestEngine(models.ConfidenceHigh)

	raw := rawReading(true, "HIGH", "NORMAL", "YES")
	delete(raw, models.FieldBreathingDetected)

	_, err := e.Fuse(context.Background(), raw)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldBreathingDetected, verr.Field)
	assert.Empty(t, p.calls)
}

func TestFuse_NoPresence(t *testing.T) {
	e, p := newTestEngine(models.ConfidenceHigh)

	for _, r := range allReadings() {
		if r.HumanDetected {
			continue
		}
		state, err := e.FuseReading(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, models.VictimState{
			PresenceConfirmed: false,
			Responsiveness:    models.ResponsivenessUnknown,
			VitalSigns:        models.VitalSignsUnknown,
			ConfidenceLevel:   models.ConfidenceLow,
			FusionExplanation: []string{ExplainNoPresence},
		}, state)
	}
	assert.Empty(t, p.calls)
}

func TestFuse_SubStatesIndependentOfClassifier(t *testing.T) {
	for _, level := range models.ConfidenceLevels {
		e, p := newTestEngine(level)
		for _, r := range allReadings() {
			if !r.HumanDetected {
				continue
			}
			state, err := e.FuseReading(context.Background(), r)
			require.NoError(t, err)

			assert.Equal(t, level, state.ConfidenceLevel)
			switch r.MotionLevel {
			case models.MotionHigh:
				assert.Equal(t, models.Responsive, state.Responsiveness)
			case models.MotionLow:
				assert.Equal(t, models.WeakResponse, state.Responsiveness)
			case models.MotionNone:
				assert.Equal(t, models.Unresponsive, state.Responsiveness)
			}
			switch {
			case r.HeatPresence == models.HeatLow:
				assert.Equal(t, models.WeakSigns, state.VitalSigns)
			case r.BreathingDetected == models.BreathingYes:
				assert.Equal(t, models.StableSigns, state.VitalSigns)
			default:
				assert.Equal(t, models.UncertainSigns, state.VitalSigns)
			}
			assert.Len(t, state.FusionExplanation, 4)
		}
		assert.Len(t, p.calls, 12)
	}
}

func TestFuse_Idempotent(t *testing.T) {
	e, _ := newTestEngine(models.ConfidenceMedium)
	raw := rawReading(true, "LOW", "NORMAL", "NO")

	first, err := e.Fuse(context.Background(), raw)
	require.NoError(t, err)
	second, err := e.Fuse(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// 每次融合生成新的解释轨迹，修改上一次结果不影响下一次
func TestFuse_ExplanationNotShared(t *testing.T) {
	e, _ := newTestEngine(models.ConfidenceMedium)
	ctx := context.Background()

	for _, raw := range []models.RawReading{
		rawReading(true, "LOW", "NORMAL", "NO"),
		rawReading(false, "LOW", "NORMAL", "NO"),
	} {
		first, err := e.Fuse(ctx, raw)
		require.NoError(t, err)
		want := append([]string(nil), first.FusionExplanation...)

		first.FusionExplanation[0] = "tampered"
		first.FusionExplanation = append(first.FusionExplanation, "extra")

		second, err := e.Fuse(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, want, second.FusionExplanation)
	}
}

func TestFuse_PredictorError(t *testing.T) {
	p := &fakePredictor{err: classifier.ErrDatasetNotFound}
	e := NewEngine(p, zap.NewNop())

	_, err := e.Fuse(context.Background(), rawReading(true, "HIGH", "NORMAL", "YES"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, classifier.ErrDatasetNotFound))
}

func TestFuse_WithTrainedModel(t *testing.T) {
	provider := classifier.NewModelProvider(
		nil,
		classifier.FileDataset{Path: "../classifier/testdata/sensor_training_data.csv"},
		classifier.DefaultForestConfig(),
		zap.NewNop(),
	)
	e := NewEngine(provider, zap.NewNop())

	for _, r := range allReadings() {
		state, err := e.FuseReading(context.Background(), r)
		require.NoError(t, err)
		assert.True(t, state.ConfidenceLevel.Valid())
	}

	// 同一模型实例，相同输入结果一致
	raw := rawReading(true, "NONE", "LOW", "NO")
	a, err := e.Fuse(context.Background(), raw)
	require.NoError(t, err)
	b, err := e.Fuse(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
