// Package i2cbus holds an exclusive handle to one addressed device on an I2C
// bus and performs single-register transactions against it.
//
// Every transaction is addressed with one sub-address byte preceding the
// payload. No retries are made: a failed or short transaction is reported to
// the caller, who decides whether the measurement it belongs to is aborted.
package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/d2r2/go-logger"
)

const (
	DefaultBus      = 1
	DefaultAddrBits = 7
	// DefaultClockHz is the I2C high-speed mode rate.
	DefaultClockHz = 3400000
)

// Logger is the leveled sink the bus reports diagnostics to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var lg Logger = logger.NewPackageLogger("i2cbus", logger.InfoLevel)

// Transport is a connection to one device address. *i2c.I2C from
// github.com/d2r2/go-i2c satisfies it as is.
type Transport interface {
	// ReadRegBytes writes reg and reads up to n bytes back. The returned
	// count is the number of bytes the device actually delivered.
	ReadRegBytes(reg byte, n int) ([]byte, int, error)
	WriteRegU8(reg byte, value byte) error
	Close() error
}

// Dialer opens a Transport for cfg.
type Dialer func(cfg Config) (Transport, error)

// Config is the identity of a bus handle.
type Config struct {
	BusID    int
	Addr     uint16
	AddrBits int
	ClockHz  int
}

// NewConfig returns a Config for addr on the default bus, 7-bit addressing
// and the default clock.
func NewConfig(addr uint16) Config {
	return Config{
		BusID:    DefaultBus,
		Addr:     addr,
		AddrBits: DefaultAddrBits,
		ClockHz:  DefaultClockHz,
	}
}

func (c Config) validate() error {
	if c.BusID < 0 {
		return fmt.Errorf("invalid bus id %d", c.BusID)
	}
	switch c.AddrBits {
	case 7, 10:
	default:
		return fmt.Errorf("invalid address width %d bits, want 7 or 10", c.AddrBits)
	}
	if c.Addr >= 1<<uint(c.AddrBits) {
		return fmt.Errorf("address 0x%X does not fit in %d bits", c.Addr, c.AddrBits)
	}
	if c.ClockHz < 0 {
		return fmt.Errorf("invalid clock rate %d Hz", c.ClockHz)
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("i2c-%d@0x%02X", c.BusID, c.Addr)
}

// Option configures a Bus.
type Option func(b *Bus)

// WithLogger replaces the package logger for one bus.
func WithLogger(l Logger) Option {
	return func(b *Bus) {
		b.lg = l
	}
}

// Bus is an open handle to one device. It is safe for concurrent use; each
// call is one transaction.
type Bus struct {
	cfg Config
	lg  Logger

	mu sync.Mutex
	tr Transport
}

// Open validates cfg and dials the transport for it.
func Open(dial Dialer, cfg Config, opts ...Option) (*Bus, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("can't open %s: %w", cfg, err)
	}

	b := &Bus{cfg: cfg, lg: lg}
	for _, opt := range opts {
		opt(b)
	}

	tr, err := dial(cfg)
	if err != nil {
		return nil, &IOError{Op: "open", Addr: cfg.Addr, Err: err}
	}
	b.tr = tr
	b.lg.Infof("connected to %s (%d-bit address, %d Hz)", cfg, cfg.AddrBits, cfg.ClockHz)

	return b, nil
}

// Config returns the identity the bus was opened with.
func (b *Bus) Config() Config {
	return b.cfg
}

// WriteReg writes exactly one byte to reg.
func (b *Bus) WriteReg(reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tr == nil {
		return ErrClosed
	}
	if err := b.tr.WriteRegU8(reg, value); err != nil {
		b.lg.Warnf("write 0x%02X to reg 0x%02X of %s: %v", value, reg, b.cfg, err)
		return &IOError{Op: "write", Addr: b.cfg.Addr, Reg: reg, Err: err}
	}
	b.lg.Debugf("wrote 0x%02X to reg 0x%02X", value, reg)

	return nil
}

// ReadReg reads n bytes starting at reg. A transport that delivers fewer
// than n bytes yields *InsufficientDataError and the partial bytes are
// dropped.
func (b *Bus) ReadReg(reg byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("can't read %d bytes from reg 0x%02X", n, reg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tr == nil {
		return nil, ErrClosed
	}
	buf, got, err := b.tr.ReadRegBytes(reg, n)
	if err != nil {
		b.lg.Warnf("read %d bytes from reg 0x%02X of %s: %v", n, reg, b.cfg, err)
		return nil, &IOError{Op: "read", Addr: b.cfg.Addr, Reg: reg, Err: err}
	}
	if got < n || len(buf) < n {
		b.lg.Warnf("short read from reg 0x%02X: got %d of %d bytes", reg, got, n)
		return nil, &InsufficientDataError{Reg: reg, Want: n, Got: got}
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	b.lg.Debugf("read reg 0x%02X: % X", reg, out)

	return out, nil
}

// ReadU8 reads a single byte from reg.
func (b *Bus) ReadU8(reg byte) (byte, error) {
	buf, err := b.ReadReg(reg, 1)
	if err != nil {
		return 0, err
	}

	return buf[0], nil
}

// Close releases the transport. Closing an already closed bus is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tr == nil {
		return nil
	}
	tr := b.tr
	b.tr = nil
	if err := tr.Close(); err != nil {
		b.lg.Warnf("close %s: %v", b.cfg, err)
		return &IOError{Op: "close", Addr: b.cfg.Addr, Err: err}
	}
	b.lg.Debugf("closed %s", b.cfg)

	return nil
}

// IsClosed reports whether err was caused by using a closed bus.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
