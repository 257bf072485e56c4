package i2cbus

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on a closed Bus.
var ErrClosed = errors.New("i2cbus: bus is closed")

// IOError reports a transaction the transport failed to complete.
type IOError struct {
	Op   string
	Addr uint16
	Reg  byte
	Err  error
}

func (e *IOError) Error() string {
	if e.Op == "read" || e.Op == "write" {
		return fmt.Sprintf("i2cbus: %s reg 0x%02X at 0x%02X: %v", e.Op, e.Reg, e.Addr, e.Err)
	}

	return fmt.Sprintf("i2cbus: %s 0x%02X: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports a read that returned fewer bytes than
// requested.
type InsufficientDataError struct {
	Reg  byte
	Want int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("i2cbus: insufficient data from reg 0x%02X: got %d of %d bytes", e.Reg, e.Got, e.Want)
}
