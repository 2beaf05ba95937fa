package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wisefido-triage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore 仅用于单元测试的内存 BlobStore
type memStore struct {
	mu      sync.Mutex
	blob    []byte
	saves   int
	saveErr error
}

func (m *memStore) LoadBlob(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, ErrModelNotFound
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *memStore) SaveBlob(ctx context.Context, modelID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

// countingDataset 统计训练次数
type countingDataset struct {
	mu      sync.Mutex
	samples []Sample
	calls   int
}

func (d *countingDataset) Samples(ctx context.Context) ([]Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.samples, nil
}

type failingDataset struct{}

func (failingDataset) Samples(ctx context.Context) ([]Sample, error) {
	return nil, errors.New("dataset must not be read")
}

func smallConfig() ForestConfig {
	return ForestConfig{Trees: 10, MaxDepth: 6, Seed: 42, MaxFeatures: 2}
}

func TestModelProvider_TrainAndPersistOnMiss(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	dataset := &countingDataset{samples: syntheticSamples(2)}
	p := NewModelProvider(store, dataset, smallConfig(), zap.NewNop())

	_, err := p.Model()
	assert.ErrorIs(t, err, ErrModelNotTrained)

	m, err := p.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dataset.calls)
	assert.Equal(t, 1, store.saves)

	again, err := p.Init(ctx)
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Equal(t, 1, dataset.calls)

	current, err := p.Model()
	require.NoError(t, err)
	assert.Same(t, m, current)
}

func TestModelProvider_LoadsExisting(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	first := NewModelProvider(store, &countingDataset{samples: syntheticSamples(2)}, smallConfig(), nil)
	trained, err := first.Init(ctx)
	require.NoError(t, err)

	second := NewModelProvider(store, failingDataset{}, smallConfig(), nil)
	loaded, err := second.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, trained.ID, loaded.ID)

	for _, fv := range allVectors() {
		want, err := trained.Predict(fv)
		require.NoError(t, err)
		got, err := second.Predict(ctx, fv)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestModelProvider_CorruptBlobRetrains(t *testing.T) {
	store := &memStore{blob: []byte("not a model")}
	dataset := &countingDataset{samples: syntheticSamples(1)}
	p := NewModelProvider(store, dataset, smallConfig(), nil)

	m, err := p.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dataset.calls)
	assert.Equal(t, 1, store.saves)

	loaded, err := Unmarshal(store.blob)
	require.NoError(t, err)
	assert.Equal(t, m.ID, loaded.ID)
}

func TestModelProvider_PersistFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	p := NewModelProvider(store, &countingDataset{samples: syntheticSamples(1)}, smallConfig(), nil)

	_, err := p.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	_, err = p.Model()
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestModelProvider_MissingDataset(t *testing.T) {
	p := NewModelProvider(nil, FileDataset{Path: "testdata/does-not-exist.csv"}, smallConfig(), nil)
	_, err := p.Init(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	p = NewModelProvider(nil, nil, smallConfig(), nil)
	_, err = p.Init(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestModelProvider_ConcurrentFirstAccess(t *testing.T) {
	store := &memStore{}
	dataset := &countingDataset{samples: syntheticSamples(1)}
	p := NewModelProvider(store, dataset, smallConfig(), nil)

	var wg sync.WaitGroup
	results := make([]models.ConfidenceLevel, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			level, err := p.Predict(context.Background(), models.FeatureVector{1, 2, 1, 1})
			assert.NoError(t, err)
			results[i] = level
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, dataset.calls)
	assert.Equal(t, 1, store.saves)
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestModelProvider_Retrain(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	dataset := &countingDataset{samples: syntheticSamples(1)}
	p := NewModelProvider(store, dataset, smallConfig(), nil)

	first, err := p.Init(ctx)
	require.NoError(t, err)
	second, err := p.Retrain(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, dataset.calls)
	assert.Equal(t, 2, store.saves)

	current, err := p.Model()
	require.NoError(t, err)
	assert.Same(t, second, current)
}
