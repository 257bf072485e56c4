package sensors

import (
	"context"
	"math/rand/v2"
)

// Mock is a fake climate sensor for development machines without a bus.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) CurrentTemperature(context.Context) (float64, error) {
	//nolint:gosec // this is a mock
	return 20 + 10*rand.Float64(), nil
}

func (m *Mock) CurrentPressure(context.Context) (float64, error) {
	//nolint:gosec // this is a mock
	return 990 + 30*rand.Float64(), nil
}

func (m *Mock) CurrentHumidity(context.Context) (float64, error) {
	//nolint:gosec // this is a mock
	return 50 + 20*rand.Float64(), nil
}

func (m *Mock) Close() error {
	return nil
}
