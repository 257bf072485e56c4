package sensors

import (
	"context"
	"fmt"

	"github.com/egregors/meep/internal/bmp180"
	"github.com/egregors/meep/internal/i2cbus"
)

// BMP180 is a temperature and barometric sensor.
type BMP180 struct {
	dev *bmp180.Dev
}

func NewBMP180(ctx context.Context, cfg Config) (*BMP180, error) {
	dial, err := cfg.dialer()
	if err != nil {
		return nil, err
	}

	var busOpts []i2cbus.Option
	if cfg.Logger != nil {
		busOpts = append(busOpts, i2cbus.WithLogger(cfg.Logger))
	}
	bus, err := i2cbus.Open(dial, cfg.Bus, busOpts...)
	if err != nil {
		return nil, err
	}

	s, err := newBMP180(ctx, bus, cfg)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	return s, nil
}

func newBMP180(ctx context.Context, bus bmp180.RegisterBus, cfg Config, extra ...bmp180.Option) (*BMP180, error) {
	opts := append([]bmp180.Option{bmp180.WithMode(cfg.Mode)}, extra...)
	if cfg.Logger != nil {
		opts = append(opts, bmp180.WithLogger(cfg.Logger))
	}

	dev, err := bmp180.Open(ctx, bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("can't set up BMP180: %w", err)
	}

	return &BMP180{dev: dev}, nil
}

func (b *BMP180) Name() string {
	return "BMP180"
}

func (b *BMP180) CurrentTemperature(ctx context.Context) (float64, error) {
	t, err := b.dev.ReadTemperature(ctx)
	if err != nil {
		return 0, err
	}

	return t.Celsius, nil
}

// CurrentPressure runs a full cycle, since pressure needs a fresh
// temperature conversion.
func (b *BMP180) CurrentPressure(ctx context.Context) (float64, error) {
	m, err := b.dev.Sense(ctx)
	if err != nil {
		return 0, err
	}

	return m.Press.HPa(), nil
}

func (b *BMP180) Sample(ctx context.Context) (Reading, error) {
	m, err := b.dev.Sense(ctx)
	if err != nil {
		return Reading{}, err
	}

	r := newReading(b.Name())
	r.Values[Temperature] = m.Temp.Celsius
	r.Values[Pressure] = m.Press.HPa()

	return r, nil
}

func (b *BMP180) Close() error {
	return b.dev.Close()
}
