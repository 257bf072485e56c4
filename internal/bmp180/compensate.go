package bmp180

import (
	"fmt"
)

// B5 is the intermediate the temperature compensation produces and the
// pressure compensation of the same cycle consumes.
type B5 int32

// compensateTemperature returns the temperature in 0.1 °C and B5 for ut.
func (c *Calibration) compensateTemperature(ut int32) (int32, B5, error) {
	x1 := ((ut - int32(c.AC6)) * int32(c.AC5)) >> 15
	den := x1 + int32(c.MD)
	if den == 0 {
		return 0, 0, fmt.Errorf("%w: zero divisor for UT=%d", ErrInvalidCalibration, ut)
	}
	x2 := (int32(c.MC) << 11) / den
	b5 := x1 + x2

	return (b5 + 8) >> 4, B5(b5), nil
}

// Temperature converts an uncompensated reading to °C.
func (c *Calibration) Temperature(ut int32) (float64, B5, error) {
	t, b5, err := c.compensateTemperature(ut)
	if err != nil {
		return 0, 0, err
	}

	return float64(t) / 10, b5, nil
}

// Pressure converts an uncompensated reading to Pa using b5 from the
// temperature step of the same cycle.
//
// B4 and B7 are unsigned in the datasheet. B7 is kept as the uint32 bit
// pattern of the signed product, and the branch tests its high bit.
func (c *Calibration) Pressure(up int32, b5 B5, mode Oversampling) (int32, error) {
	oss := uint(mode.OSS())

	b6 := int32(b5) - 4000
	x1 := (int32(c.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int32(c.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int32(c.AC1)*4 + x3) << oss) + 2) / 4

	x1 = (int32(c.AC3) * b6) >> 13
	x2 = (int32(c.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(c.AC4) * uint32(x3+32768)) >> 15
	if b4 == 0 {
		return 0, fmt.Errorf("%w: zero divisor for UP=%d", ErrInvalidCalibration, up)
	}
	b7 := uint32(up-b3) * uint32(50000>>oss)

	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 * 2) / b4)
	} else {
		p = int32((b7 / b4) * 2)
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	p += (x1 + x2 + 3791) >> 4

	return p, nil
}
