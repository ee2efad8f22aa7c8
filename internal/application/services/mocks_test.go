package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
)

// Mocks

type MockPredictor struct {
	mock.Mock
	name   string
	schema entities.FeatureSchema
}

func NewMockPredictor(name string, schema entities.FeatureSchema) *MockPredictor {
	return &MockPredictor{name: name, schema: schema}
}

func (m *MockPredictor) Name() string                   { return m.name }
func (m *MockPredictor) Schema() entities.FeatureSchema { return m.schema }

func (m *MockPredictor) Predict(fv entities.FeatureVector) (float64, error) {
	args := m.Called(fv)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockPredictor) PredictProbability(fv entities.FeatureVector) (float64, error) {
	args := m.Called(fv)
	return args.Get(0).(float64), args.Error(1)
}

// MockScoringPredictor also exposes a class distribution
type MockScoringPredictor struct {
	*MockPredictor
}

func (m MockScoringPredictor) Probabilities(fv entities.FeatureVector) ([]float64, error) {
	args := m.Called(fv)
	probs, _ := args.Get(0).([]float64)
	return probs, args.Error(1)
}

type MockLabelDecoder struct {
	mock.Mock
}

func (m *MockLabelDecoder) Decode(class int) (string, error) {
	args := m.Called(class)
	return args.String(0), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.AlertEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	return nil
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Name() string { return "mock" }

func (m *MockNotifier) Notify(ctx context.Context, event *entities.AlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Fakes

// featurePredictor returns the value of one named feature, which lets batch
// tests choose each row's predicted count through its input column
type featurePredictor struct {
	schema  entities.FeatureSchema
	feature string

	mu    sync.Mutex
	calls int
}

func (p *featurePredictor) Name() string                   { return "feature_echo" }
func (p *featurePredictor) Schema() entities.FeatureSchema { return p.schema }

func (p *featurePredictor) Predict(fv entities.FeatureVector) (float64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	v, _ := fv.Get(p.feature)
	return v, nil
}

func (p *featurePredictor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type staticModels struct {
	set *providers.ModelSet
	err error
}

func (s staticModels) Load() (*providers.ModelSet, error) {
	return s.set, s.err
}

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}
