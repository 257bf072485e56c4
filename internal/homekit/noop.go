package homekit

import (
	"context"
)

// NoopHap stands in for the HAP server when HomeKit is disabled.
type NoopHap struct{}

func (n NoopHap) SetCurrentTemperature(float64) {}

func (n NoopHap) SetCurrentHumidity(float64) {}

func (n NoopHap) ListenAndServe(ctx context.Context) error {
	<-ctx.Done()

	return nil
}
