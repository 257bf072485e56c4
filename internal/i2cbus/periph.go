package i2cbus

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type periphTransport struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// DialPeriph opens the bus through periph.io. See newPeriphTransport for how
// cfg.ClockHz is applied.
func DialPeriph(cfg Config) (Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("can't init periph host: %w", err)
	}

	b, err := i2creg.Open(strconv.Itoa(cfg.BusID))
	if err != nil {
		return nil, fmt.Errorf("can't open i2c bus %d: %w", cfg.BusID, err)
	}

	return newPeriphTransport(b, cfg), nil
}

// newPeriphTransport asks b for cfg.ClockHz when it is non-zero. Most hosts
// leave the rate to the kernel driver and refuse, so a refusal is logged and
// the bus keeps its current rate.
func newPeriphTransport(b i2c.BusCloser, cfg Config) *periphTransport {
	if cfg.ClockHz > 0 {
		if err := b.SetSpeed(physic.Frequency(cfg.ClockHz) * physic.Hertz); err != nil {
			lg.Warnf("%s: keeping the driver's clock rate, can't set %d Hz: %v", cfg, cfg.ClockHz, err)
		}
	}

	return &periphTransport{
		bus: b,
		dev: &i2c.Dev{Addr: cfg.Addr, Bus: b},
	}
}

// ReadRegBytes issues a combined write-then-read transaction. periph reports
// a short transfer as an error, so the count is either n or 0.
func (p *periphTransport) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	buf := make([]byte, n)
	if err := p.dev.Tx([]byte{reg}, buf); err != nil {
		return nil, 0, err
	}

	return buf, n, nil
}

func (p *periphTransport) WriteRegU8(reg, value byte) error {
	return p.dev.Tx([]byte{reg, value}, nil)
}

func (p *periphTransport) Close() error {
	return p.bus.Close()
}
