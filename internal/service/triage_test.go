package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"wisefido-triage/internal/classifier"
	"wisefido-triage/internal/fusion"
	"wisefido-triage/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const trainingData = "../classifier/testdata/sensor_training_data.csv"

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.Assessment
	err     error
}

func (f *fakeRecorder) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, a)
	return nil
}

func (f *fakeRecorder) ListRecentAssessments(ctx context.Context, limit int, minLevel models.UrgencyLevel) ([]*models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Assessment
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if minLevel == "" || f.records[i].Urgency.UrgencyLevel.Rank() >= minLevel.Rank() {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *fakeRecorder) GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.records {
		if a.AssessmentID == assessmentID {
			return a, nil
		}
	}
	return nil, errors.New("not found")
}

func newTestProvider() *classifier.ModelProvider {
	cfg := classifier.DefaultForestConfig()
	cfg.Trees = 10
	return classifier.NewModelProvider(nil, classifier.FileDataset{Path: trainingData}, cfg, zap.NewNop())
}

func newTestService(t *testing.T, opts Options) *TriageService {
	t.Helper()
	provider := newTestProvider()
	_, err := provider.Init(context.Background())
	require.NoError(t, err)
	return NewTriageService(provider, zap.NewNop(), opts)
}

func reading(human bool, motion, heat, breathing string) models.RawReading {
	return models.RawReading{
		models.FieldHumanDetected:     human,
		models.FieldMotionLevel:       motion,
		models.FieldHeatPresence:      heat,
		models.FieldBreathingDetected: breathing,
	}
}

// Scenario: 无反应、体征弱、高风险 → CRITICAL
func TestAssess_Critical(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestService(t, Options{Recorder: recorder})

	a, err := s.Assess(context.Background(), reading(true, "NONE", "LOW", "NO"), models.RiskHigh)
	require.NoError(t, err)

	assert.NotEmpty(t, a.AssessmentID)
	assert.NotEmpty(t, a.ModelID)
	assert.Equal(t, models.Unresponsive, a.VictimState.Responsiveness)
	assert.Equal(t, models.WeakSigns, a.VictimState.VitalSigns)
	assert.Equal(t, models.UrgencyCritical, a.Urgency.UrgencyLevel)
	assert.False(t, a.CreatedAt.IsZero())

	require.Len(t, recorder.records, 1)
	assert.Same(t, a, recorder.records[0])
}

// Scenario: 未检测到人，环境风险高也不升级
func TestAssess_NoPresence(t *testing.T) {
	s := newTestService(t, Options{})

	a, err := s.Assess(context.Background(), reading(false, "HIGH", "NORMAL", "YES"), models.RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyNone, a.Urgency.UrgencyLevel)
	assert.False(t, a.VictimState.PresenceConfirmed)
	assert.Empty(t, a.ModelID)
}

func TestAssess_ValidationError(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestService(t, Options{Recorder: recorder})

	raw := reading(true, "MINIMAL", "LOW", "NO")
	_, err := s.Assess(context.Background(), raw, models.RiskLow)

	var verr *fusion.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldMotionLevel, verr.Field)
	assert.Empty(t, recorder.records)
}

func TestAssess_InvalidRisk(t *testing.T) {
	s := newTestService(t, Options{})

	_, err := s.Assess(context.Background(), reading(true, "HIGH", "NORMAL", "YES"), models.EnvironmentRisk("EXTREME"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment_risk")
}

func TestAssess_SinkFailuresDoNotFail(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("db down")}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	s := newTestService(t, Options{
		Recorder:  recorder,
		Publisher: NewStreamPublisher(client, "triage:assessments"),
	})

	a, err := s.Assess(context.Background(), reading(true, "HIGH", "NORMAL", "YES"), models.RiskLow)
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyModerate, a.Urgency.UrgencyLevel)
}

func TestAssess_PublishesToStream(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := newTestService(t, Options{Publisher: NewStreamPublisher(client, "triage:assessments")})

	a, err := s.Assess(context.Background(), reading(true, "LOW", "NORMAL", "NO"), models.RiskMedium)
	require.NoError(t, err)

	msgs, err := client.XRange(context.Background(), "triage:assessments", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var published models.Assessment
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &published))
	assert.Equal(t, a.AssessmentID, published.AssessmentID)
	assert.Equal(t, models.UrgencyHigh, published.Urgency.UrgencyLevel)
	assert.Equal(t, a.VictimState.FusionExplanation, published.VictimState.FusionExplanation)
}

func TestHistoryAndLookup(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestService(t, Options{Recorder: recorder, History: recorder, Lookup: recorder})
	ctx := context.Background()

	critical, err := s.Assess(ctx, reading(true, "NONE", "LOW", "NO"), models.RiskHigh)
	require.NoError(t, err)
	_, err = s.Assess(ctx, reading(true, "HIGH", "NORMAL", "YES"), models.RiskLow)
	require.NoError(t, err)

	all, err := s.History(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	high, err := s.History(ctx, 10, models.UrgencyHigh)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, critical.AssessmentID, high[0].AssessmentID)

	got, err := s.Assessment(ctx, critical.AssessmentID)
	require.NoError(t, err)
	assert.Same(t, critical, got)
}

func TestHistory_Unavailable(t *testing.T) {
	s := newTestService(t, Options{})

	_, err := s.History(context.Background(), 10, "")
	assert.True(t, errors.Is(err, ErrHistoryUnavailable))

	_, err = s.Assessment(context.Background(), "any")
	assert.True(t, errors.Is(err, ErrHistoryUnavailable))
}

func TestTrainAndEvaluate(t *testing.T) {
	provider := newTestProvider()
	s := NewTriageService(provider, zap.NewNop(), Options{})

	_, err := s.Evaluate(context.Background())
	assert.True(t, errors.Is(err, classifier.ErrModelNotTrained))

	m, err := s.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, m.TreeCount())

	metrics, err := s.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Len(t, metrics.CVScores, classifier.DefaultFolds)
	assert.InDelta(t, metrics.CVMean, metrics.Accuracy, 1e-12)
	assert.GreaterOrEqual(t, metrics.F1Score, 0.0)
	assert.LessOrEqual(t, metrics.F1Score, 1.0)

	total := 0
	for _, row := range metrics.ConfusionMatrix {
		for _, n := range row {
			total += n
		}
	}
	samples, err := provider.Samples(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(samples), total)
}
