// Package bmp180 drives a Bosch BMP180 (and the register compatible BMP085)
// barometric pressure and temperature sensor over I2C.
//
// A measurement is an acquisition cycle: the temperature conversion runs
// first and hands its B5 intermediate to the pressure conversion. The device
// lock is held for the whole cycle, because the command, conversion wait and
// result read are not atomic on the chip.
//
// Datasheet: https://ae-bst.resource.bosch.com/media/_tech/media/datasheets/BST-BMP180-DS000-12.pdf
package bmp180

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/d2r2/go-logger"
)

// Address is the fixed I2C address of the device.
const Address = 0x77

const (
	regCalibration = 0xAA
	regControl     = 0xF4
	regData        = 0xF6

	cmdTemperature = 0x2E
	cmdPressure    = 0x34

	settleDelay      = 500 * time.Millisecond
	temperatureDelay = 100 * time.Millisecond
)

var (
	ErrUncalibrated       = errors.New("bmp180: calibration coefficients not loaded")
	ErrMissingTemperature = errors.New("bmp180: pressure needs a temperature reading from the same cycle")
	ErrInvalidCalibration = errors.New("bmp180: invalid calibration data")
	ErrReleased           = errors.New("bmp180: acquisition cycle already released")
)

// RegisterBus is the single-register transport the device talks through.
// *i2cbus.Bus implements it.
type RegisterBus interface {
	WriteReg(reg, value byte) error
	ReadReg(reg byte, n int) ([]byte, error)
	Close() error
}

// Logger is the leveled diagnostics sink.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var lg Logger = logger.NewPackageLogger("bmp180", logger.InfoLevel)

// TempReading is the outcome of the temperature path.
type TempReading struct {
	UT      int32
	B5      B5
	Celsius float64
}

// PressReading is the outcome of the pressure path.
type PressReading struct {
	UP int32
	Pa int32
}

// HPa is the pressure in whole hectopascals (integer division of Pa).
func (p PressReading) HPa() float64 {
	return float64(p.Pa / 100)
}

// Measurement is one complete acquisition cycle.
type Measurement struct {
	Temp  TempReading
	Press PressReading
}

type Option func(d *Dev)

// WithMode sets the pressure oversampling. The default is Standard.
func WithMode(mode Oversampling) Option {
	return func(d *Dev) {
		d.mode = mode
	}
}

func WithLogger(l Logger) Option {
	return func(d *Dev) {
		d.lg = l
	}
}

// WithClock replaces the wall clock and the conversion wait.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(d *Dev) {
		d.now = now
		d.sleep = sleep
	}
}

// Dev is a BMP180 on a RegisterBus. The Dev owns the bus and closes it.
type Dev struct {
	bus     RegisterBus
	mode    Oversampling
	lg      Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	created time.Time

	mu        sync.Mutex
	cal       *Calibration
	busyUntil time.Time
}

// New wraps bus without touching the device. Call Calibrate before
// measuring.
func New(bus RegisterBus, opts ...Option) (*Dev, error) {
	d := &Dev{
		bus:   bus,
		mode:  Standard,
		lg:    lg,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	if !d.mode.valid() {
		return nil, fmt.Errorf("invalid oversampling setting %d", d.mode)
	}
	d.created = d.now()

	return d, nil
}

// Open creates a Dev and loads its calibration.
func Open(ctx context.Context, bus RegisterBus, opts ...Option) (*Dev, error) {
	d, err := New(bus, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Calibrate(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("BMP180{%s}", d.mode)
}

// Mode returns the oversampling the device was created with.
func (d *Dev) Mode() Oversampling {
	return d.mode
}

// Calibrate waits for the power-on settle time and loads the coefficients.
// Once it succeeds later calls do nothing. A failed load leaves the device
// uncalibrated.
func (d *Dev) Calibrate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cal != nil {
		return nil
	}
	if wait := d.created.Add(settleDelay).Sub(d.now()); wait > 0 {
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}

	cal, err := LoadCalibration(d.bus)
	if err != nil {
		d.lg.Errorf("calibration failed: %v", err)
		return err
	}
	d.cal = &cal
	d.lg.Debugf("calibration: %+v", cal)

	return nil
}

// Calibration returns the loaded coefficients.
func (d *Dev) Calibration() (Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cal == nil {
		return Calibration{}, ErrUncalibrated
	}

	return *d.cal, nil
}

// Begin starts an acquisition cycle and takes the device lock. The caller
// must Release the cycle.
func (d *Dev) Begin() (*Cycle, error) {
	d.mu.Lock()
	if d.cal == nil {
		d.mu.Unlock()
		return nil, ErrUncalibrated
	}

	return &Cycle{d: d, cal: d.cal}, nil
}

// Sense runs a full cycle: temperature, then pressure.
func (d *Dev) Sense(ctx context.Context) (Measurement, error) {
	c, err := d.Begin()
	if err != nil {
		return Measurement{}, err
	}
	defer c.Release()

	t, err := c.Temperature(ctx)
	if err != nil {
		return Measurement{}, err
	}
	p, err := c.Pressure(ctx)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{Temp: t, Press: p}, nil
}

// ReadTemperature runs a temperature-only cycle.
func (d *Dev) ReadTemperature(ctx context.Context) (TempReading, error) {
	c, err := d.Begin()
	if err != nil {
		return TempReading{}, err
	}
	defer c.Release()

	return c.Temperature(ctx)
}

// Close releases the bus. It waits for a running cycle to finish.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bus.Close()
}

// command writes cmd to the control register and blocks for conv. A command
// is never issued while an earlier conversion may still be running, even
// when the cycle that started it was abandoned.
//
// Must be called with d.mu held.
func (d *Dev) command(ctx context.Context, cmd byte, conv time.Duration) error {
	if wait := d.busyUntil.Sub(d.now()); wait > 0 {
		d.lg.Debugf("waiting %v for a pending conversion", wait)
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if err := d.bus.WriteReg(regControl, cmd); err != nil {
		return fmt.Errorf("can't start conversion 0x%02X: %w", cmd, err)
	}
	d.busyUntil = d.now().Add(conv)

	return d.sleep(ctx, conv)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Cycle is one acquisition against a Dev.
type Cycle struct {
	d    *Dev
	cal  *Calibration
	temp *TempReading
	done bool
}

// Temperature runs the temperature path. Its B5 feeds the next Pressure call
// of this cycle.
func (c *Cycle) Temperature(ctx context.Context) (TempReading, error) {
	if c.done {
		return TempReading{}, ErrReleased
	}
	d := c.d

	if err := d.command(ctx, cmdTemperature, temperatureDelay); err != nil {
		return TempReading{}, err
	}
	buf, err := d.bus.ReadReg(regData, 2)
	if err != nil {
		return TempReading{}, fmt.Errorf("can't read temperature: %w", err)
	}
	ut := int32(uint16(buf[0])<<8 | uint16(buf[1]))

	celsius, b5, err := c.cal.Temperature(ut)
	if err != nil {
		return TempReading{}, err
	}
	t := TempReading{UT: ut, B5: b5, Celsius: celsius}
	c.temp = &t
	d.lg.Debugf("UT=%d B5=%d T=%.1f°C", ut, b5, celsius)

	return t, nil
}

// Pressure runs the pressure path with the B5 of this cycle's temperature
// reading.
func (c *Cycle) Pressure(ctx context.Context) (PressReading, error) {
	if c.done {
		return PressReading{}, ErrReleased
	}
	if c.temp == nil {
		return PressReading{}, ErrMissingTemperature
	}
	d := c.d
	oss := d.mode.OSS()

	if err := d.command(ctx, d.mode.Command(), d.mode.Delay()); err != nil {
		return PressReading{}, err
	}
	buf, err := d.bus.ReadReg(regData, 3)
	if err != nil {
		return PressReading{}, fmt.Errorf("can't read pressure: %w", err)
	}
	up := (int32(buf[0])<<16&0xFF0000 | int32(buf[1])<<8&0xFF00 | int32(buf[2])&0xFF) >> (8 - oss)

	pa, err := c.cal.Pressure(up, c.temp.B5, d.mode)
	if err != nil {
		return PressReading{}, err
	}
	d.lg.Debugf("UP=%d p=%d Pa", up, pa)

	return PressReading{UP: up, Pa: pa}, nil
}

// Release ends the cycle and unlocks the device. It is safe to call twice.
func (c *Cycle) Release() {
	if c.done {
		return
	}
	c.done = true
	c.temp = nil
	c.d.mu.Unlock()
}
