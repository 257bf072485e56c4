package i2cbus

import (
	"fmt"

	"github.com/d2r2/go-i2c"
)

// DialD2R2 opens /dev/i2c-<BusID> through github.com/d2r2/go-i2c. The kernel
// driver owns the clock rate, so cfg.ClockHz is informational only.
func DialD2R2(cfg Config) (Transport, error) {
	if cfg.AddrBits != 7 {
		return nil, fmt.Errorf("d2r2 transport supports 7-bit addresses only, got %d", cfg.AddrBits)
	}

	conn, err := i2c.NewI2C(uint8(cfg.Addr), cfg.BusID)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
